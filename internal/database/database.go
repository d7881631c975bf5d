// Package database persists generated reports to SQLite through gorm.
// Reports are immutable once stored; the only mutation is deletion.
package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cyberbrief/cyberbrief/internal/util"
	"github.com/cyberbrief/cyberbrief/pkg/model"
)

// ErrNotFound is returned when no report exists for the requested ID.
var ErrNotFound = errors.New("report not found")

// Store wraps the report history database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the history database at path and migrates
// the report tables.
func Open(path string) (*Store, error) {
	util.PrintInfo("Initializing report history database: " + path)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	if err := db.AutoMigrate(
		&ReportRow{},
		&SectionRow{},
		&IOCRow{},
		&TechniqueRow{},
		&EvidenceRow{},
		&SourceRow{},
		&CitationRow{},
		&AssessmentRow{},
	); err != nil {
		return nil, fmt.Errorf("migrating report tables: %w", err)
	}

	util.PrintSuccess("Report history database ready")
	return &Store{db: db}, nil
}

func marshalList(v interface{}) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(buf)
}

func unmarshalList(raw string) []string {
	var out []string
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &out)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// SaveReport persists a report and all of its children in one transaction.
func (s *Store) SaveReport(rpt *model.Report) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		row := ReportRow{
			ReportID:         rpt.ID,
			Topic:            rpt.Topic,
			CreatedAt:        rpt.CreatedAt,
			Tier:             string(rpt.Tier),
			TLP:              string(rpt.TLP),
			BLUF:             rpt.BLUF,
			ActorName:        rpt.ThreatActor.Name,
			ActorAliases:     marshalList(rpt.ThreatActor.Aliases),
			ActorAttribution: rpt.ThreatActor.Attribution,
			ActorFirstSeen:   rpt.ThreatActor.FirstSeen,
			ActorLastActive:  rpt.ThreatActor.LastActive,
			ActorTooling:     marshalList(rpt.ThreatActor.Tooling),
			ActorNotes:       rpt.ThreatActor.Notes,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		for i, section := range rpt.Sections {
			if err := tx.Create(&SectionRow{
				ReportID:  rpt.ID,
				Position:  i,
				SectionID: section.ID,
				Title:     section.Title,
				Content:   section.Content,
				Citations: marshalList(section.Citations),
			}).Error; err != nil {
				return err
			}
		}
		for _, entry := range rpt.IOCs {
			if err := tx.Create(&IOCRow{
				ReportID: rpt.ID,
				Type:     string(entry.Type),
				Value:    entry.Value,
				Context:  entry.Context,
				Sources:  marshalList(entry.Sources),
			}).Error; err != nil {
				return err
			}
		}
		for i, tech := range rpt.AttackMapping {
			if err := tx.Create(&TechniqueRow{
				ReportID:    rpt.ID,
				Position:    i,
				TechniqueID: tech.TechniqueID,
				Name:        tech.Name,
				Tactic:      tech.Tactic,
				Description: tech.Description,
			}).Error; err != nil {
				return err
			}
			for _, ev := range tech.Evidence {
				if err := tx.Create(&EvidenceRow{
					ReportID:    rpt.ID,
					TechniqueID: tech.TechniqueID,
					Quote:       ev.Quote,
					Source:      ev.Source,
				}).Error; err != nil {
					return err
				}
			}
		}
		for i, src := range rpt.Sources {
			if err := tx.Create(&SourceRow{
				ReportID:   rpt.ID,
				Position:   i,
				Title:      src.Title,
				URL:        src.URL,
				AccessedAt: src.AccessedAt,
				Snippet:    src.Snippet,
			}).Error; err != nil {
				return err
			}
		}
		for i, note := range rpt.Footnotes {
			if err := tx.Create(&CitationRow{ReportID: rpt.ID, Position: i, Kind: "footnote", Text: note}).Error; err != nil {
				return err
			}
		}
		for i, entry := range rpt.Bibliography {
			if err := tx.Create(&CitationRow{ReportID: rpt.ID, Position: i, Kind: "bibliography", Text: entry}).Error; err != nil {
				return err
			}
		}
		for i, a := range rpt.ConfidenceAssessments {
			if err := tx.Create(&AssessmentRow{
				ReportID:   rpt.ID,
				Position:   i,
				Finding:    a.Finding,
				Confidence: string(a.Confidence),
				Rationale:  a.Rationale,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ReportSummary is the list-view projection of a stored report.
type ReportSummary struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	CreatedAt string `json:"createdAt"`
	Tier      string `json:"tier"`
	TLP       string `json:"tlp"`
	BLUF      string `json:"bluf"`
}

// ListReports returns stored report summaries, newest first.
func (s *Store) ListReports() ([]ReportSummary, error) {
	var rows []ReportRow
	if err := s.db.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	summaries := make([]ReportSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, ReportSummary{
			ID:        row.ReportID,
			Topic:     row.Topic,
			CreatedAt: row.CreatedAt,
			Tier:      row.Tier,
			TLP:       row.TLP,
			BLUF:      row.BLUF,
		})
	}
	return summaries, nil
}

// GetReport reconstructs a full report from its normalized rows.
func (s *Store) GetReport(id string) (*model.Report, error) {
	var row ReportRow
	if err := s.db.Where("report_id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rpt := &model.Report{
		ID:        row.ReportID,
		Topic:     row.Topic,
		CreatedAt: row.CreatedAt,
		Tier:      model.Tier(row.Tier),
		TLP:       model.TLPLevel(row.TLP),
		BLUF:      row.BLUF,
		ThreatActor: model.ThreatActorProfile{
			Name:        row.ActorName,
			Aliases:     unmarshalList(row.ActorAliases),
			Attribution: row.ActorAttribution,
			FirstSeen:   row.ActorFirstSeen,
			LastActive:  row.ActorLastActive,
			Tooling:     unmarshalList(row.ActorTooling),
			Notes:       row.ActorNotes,
		},
		Sections:              []model.ReportSection{},
		IOCs:                  []model.IOC{},
		AttackMapping:         []model.AttackTechnique{},
		Sources:               []model.ReportSource{},
		Footnotes:             []string{},
		Bibliography:          []string{},
		ConfidenceAssessments: []model.ConfidenceAssessment{},
	}

	var sections []SectionRow
	if err := s.db.Where("report_id = ?", id).Order("position").Find(&sections).Error; err != nil {
		return nil, err
	}
	for _, sec := range sections {
		rpt.Sections = append(rpt.Sections, model.ReportSection{
			ID:        sec.SectionID,
			Title:     sec.Title,
			Content:   sec.Content,
			Citations: unmarshalList(sec.Citations),
		})
	}

	var iocs []IOCRow
	if err := s.db.Where("report_id = ?", id).Order("id").Find(&iocs).Error; err != nil {
		return nil, err
	}
	for _, entry := range iocs {
		rpt.IOCs = append(rpt.IOCs, model.IOC{
			Type:    model.IOCType(entry.Type),
			Value:   entry.Value,
			Context: entry.Context,
			Sources: unmarshalList(entry.Sources),
		})
	}

	var evidence []EvidenceRow
	if err := s.db.Where("report_id = ?", id).Order("id").Find(&evidence).Error; err != nil {
		return nil, err
	}
	evidenceByTechnique := make(map[string][]model.Evidence)
	for _, ev := range evidence {
		evidenceByTechnique[ev.TechniqueID] = append(evidenceByTechnique[ev.TechniqueID], model.Evidence{Quote: ev.Quote, Source: ev.Source})
	}

	var techniques []TechniqueRow
	if err := s.db.Where("report_id = ?", id).Order("position").Find(&techniques).Error; err != nil {
		return nil, err
	}
	for _, tech := range techniques {
		ev := evidenceByTechnique[tech.TechniqueID]
		if ev == nil {
			ev = []model.Evidence{}
		}
		rpt.AttackMapping = append(rpt.AttackMapping, model.AttackTechnique{
			TechniqueID: tech.TechniqueID,
			Name:        tech.Name,
			Tactic:      tech.Tactic,
			Description: tech.Description,
			Evidence:    ev,
		})
	}

	var sources []SourceRow
	if err := s.db.Where("report_id = ?", id).Order("position").Find(&sources).Error; err != nil {
		return nil, err
	}
	for _, src := range sources {
		rpt.Sources = append(rpt.Sources, model.ReportSource{
			Title:      src.Title,
			URL:        src.URL,
			AccessedAt: src.AccessedAt,
			Snippet:    src.Snippet,
		})
	}

	var citations []CitationRow
	if err := s.db.Where("report_id = ?", id).Find(&citations).Error; err != nil {
		return nil, err
	}
	sort.Slice(citations, func(i, j int) bool { return citations[i].Position < citations[j].Position })
	for _, c := range citations {
		switch c.Kind {
		case "footnote":
			rpt.Footnotes = append(rpt.Footnotes, c.Text)
		case "bibliography":
			rpt.Bibliography = append(rpt.Bibliography, c.Text)
		}
	}

	var assessments []AssessmentRow
	if err := s.db.Where("report_id = ?", id).Order("position").Find(&assessments).Error; err != nil {
		return nil, err
	}
	for _, a := range assessments {
		rpt.ConfidenceAssessments = append(rpt.ConfidenceAssessments, model.ConfidenceAssessment{
			Finding:    a.Finding,
			Confidence: model.ConfidenceLevel(a.Confidence),
			Rationale:  a.Rationale,
		})
	}

	return rpt, nil
}

// DeleteReport removes a report and every child row.
func (s *Store) DeleteReport(id string) error {
	var row ReportRow
	if err := s.db.Where("report_id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []interface{}{
			&SectionRow{}, &IOCRow{}, &TechniqueRow{}, &EvidenceRow{},
			&SourceRow{}, &CitationRow{}, &AssessmentRow{},
		} {
			if err := tx.Where("report_id = ?", id).Delete(table).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&row).Error
	})
}
