package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/cyberbrief/cyberbrief/internal/attack"
	"github.com/cyberbrief/cyberbrief/internal/database"
	"github.com/cyberbrief/cyberbrief/internal/export"
	"github.com/cyberbrief/cyberbrief/internal/report"
	"github.com/cyberbrief/cyberbrief/internal/util"
	"github.com/cyberbrief/cyberbrief/pkg/model"
	"github.com/cyberbrief/cyberbrief/pkg/version"
)

// fail maps pipeline errors onto HTTP statuses. Every error body is
// {"detail": "..."} so clients have one shape to handle.
func fail(c *fiber.Ctx, err error) error {
	var (
		validationErr *model.ValidationError
		credentialErr *model.MissingCredentialError
		rateErr       *model.RateLimitedError
		timeoutErr    *model.ProviderTimeoutError
		providerErr   *model.ProviderError
	)

	status := fiber.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &credentialErr):
		status = fiber.StatusBadRequest
	case errors.As(err, &rateErr):
		status = fiber.StatusTooManyRequests
	case errors.As(err, &timeoutErr):
		status = fiber.StatusGatewayTimeout
	case errors.As(err, &providerErr):
		status = fiber.StatusBadGateway
	default:
		util.PrintErrorf("internal error on %s: %v", c.Path(), err)
	}
	return c.Status(status).JSON(model.ErrorResponse{Detail: err.Error()})
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(model.HealthResponse{Status: "ok", Version: version.Version()})
}

// jobID returns the client-supplied X-Job-ID or mints one. The ID is echoed
// back in the response header so clients can follow /ws/research/:id.
func jobID(c *fiber.Ctx) string {
	id := c.Get("X-Job-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("X-Job-ID", id)
	return id
}

func (s *Server) researchHandler(c *fiber.Ctx) error {
	if err := s.limiter.check(c.IP()); err != nil {
		return fail(c, err)
	}

	var req model.ResearchRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, model.Validationf("invalid request body: %v", err))
	}
	if req.Tier == "" {
		req.Tier = s.cfg.Snapshot().Defaults.Tier
	}

	id := jobID(c)
	s.progress.open(id)
	bundle, err := s.engine.Run(c.Context(), req, func(stage string) {
		s.progress.publish(id, stage)
	})
	if err != nil {
		s.progress.publish(id, "failed")
		return fail(c, err)
	}
	return c.JSON(bundle)
}

func (s *Server) researchFromSourcesHandler(c *fiber.Ctx) error {
	if err := s.limiter.check(c.IP()); err != nil {
		return fail(c, err)
	}

	var req model.SourceResearchRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, model.Validationf("invalid request body: %v", err))
	}

	id := jobID(c)
	s.progress.open(id)
	bundle, err := s.engine.RunFromSources(c.Context(), req, func(stage string) {
		s.progress.publish(id, stage)
	})
	if err != nil {
		s.progress.publish(id, "failed")
		return fail(c, err)
	}
	return c.JSON(bundle)
}

func (s *Server) reportGenerateHandler(c *fiber.Ctx) error {
	var req model.ReportGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, model.Validationf("invalid request body: %v", err))
	}

	reportType := "full"
	tlp := s.cfg.Snapshot().Defaults.TLP
	if req.Settings != nil {
		if req.Settings.ReportType != "" {
			reportType = req.Settings.ReportType
		}
		if req.Settings.DefaultTLP != "" {
			tlp = req.Settings.DefaultTLP
		}
	}

	rpt, err := report.Generate(req.Bundle, reportType, tlp)
	if err != nil {
		return fail(c, err)
	}

	if s.store != nil {
		if err := s.store.SaveReport(rpt); err != nil {
			// Persistence is best effort; the report still goes back to the client.
			util.PrintErrorf("failed to persist report %s: %v", rpt.ID, err)
		}
	}
	return c.JSON(rpt)
}

func (s *Server) attackLookupHandler(c *fiber.Ctx) error {
	q := c.Query("q")
	if q == "" {
		return fail(c, model.Validationf("query parameter q is required"))
	}
	util.PrintInfo("ATT&CK lookup query: " + q)
	return c.JSON(attack.LookupTechnique(q))
}

func (s *Server) attackNavigatorHandler(c *fiber.Ctx) error {
	var req model.NavigatorRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, model.Validationf("invalid request body: %v", err))
	}
	topic := req.Topic
	if topic == "" {
		topic = "CyberBRIEF Report"
	}
	return c.JSON(attack.GenerateNavigatorLayer(req.Techniques, topic))
}

func (s *Server) exportMarkdownHandler(c *fiber.Ctx) error {
	var rpt model.Report
	if err := c.BodyParser(&rpt); err != nil {
		return fail(c, model.Validationf("invalid report body: %v", err))
	}
	c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
	return c.SendString(export.Markdown(&rpt))
}

func (s *Server) exportHTMLHandler(c *fiber.Ctx) error {
	var rpt model.Report
	if err := c.BodyParser(&rpt); err != nil {
		return fail(c, model.Validationf("invalid report body: %v", err))
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(export.HTML(&rpt))
}

func (s *Server) exportPDFHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
		"detail":     "PDF export is not yet implemented. Use Markdown export and convert externally.",
		"suggestion": "pandoc -f markdown -t pdf report.md -o report.pdf",
	})
}

func (s *Server) listReportsHandler(c *fiber.Ctx) error {
	summaries, err := s.store.ListReports()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(summaries)
}

func (s *Server) getReportHandler(c *fiber.Ctx) error {
	rpt, err := s.store.GetReport(c.Params("id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(model.ErrorResponse{Detail: "report not found"})
		}
		return fail(c, err)
	}
	return c.JSON(rpt)
}

func (s *Server) deleteReportHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.DeleteReport(id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(model.ErrorResponse{Detail: "report not found"})
		}
		return fail(c, err)
	}
	util.PrintInfo("Deleted report " + id)
	return c.JSON(fiber.Map{"deleted": id})
}
