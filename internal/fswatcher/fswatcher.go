package fswatcher

import (
	"github.com/fsnotify/fsnotify"

	"github.com/cyberbrief/cyberbrief/internal/util"
)

// Watch watches a single file and invokes onWrite for every write event until
// stop is closed. Used to hot-reload provider keys from the config file.
func Watch(file string, onWrite func(string), stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) {
					util.PrintInfo("modified file: " + event.Name)
					onWrite(event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				util.PrintError("watch error: " + err.Error())
			case <-stop:
				return
			}
		}
	}()

	return watcher.Add(file)
}
