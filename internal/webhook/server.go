package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/tverdokhlib/bankbridge/internal/model"
)

// Server is the HTTP listener the bank delivers webhooks to.
type Server struct {
	e         *echo.Echo
	processor *Processor
	addr      string
	path      string
}

// NewServer builds the listener. path is both the registration probe target
// (GET) and the delivery endpoint (POST).
func NewServer(addr, path string, processor *Processor) *Server {
	app := echo.New()
	app.HideBanner = true
	app.HidePort = true

	app.Pre(echomiddleware.RemoveTrailingSlash())
	app.Use(echomiddleware.Recover())
	app.Use(echomiddleware.RequestID())

	s := &Server{
		e:         app,
		processor: processor,
		addr:      addr,
		path:      path,
	}

	app.GET(path, s.probe)
	app.POST(path, s.receive)

	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Webhook listener starting", "addr", s.addr, "path", s.path)
	if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and waits for in-flight deliveries.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.e.Shutdown(ctx)
	s.processor.Wait()
	return err
}

// probe answers the bank's webhook registration check.
func (s *Server) probe(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// receive acknowledges a delivery immediately and hands it to the pipeline.
// The bank retries non-200 responses, so slow backend work must never hold
// the response open.
func (s *Server) receive(c echo.Context) error {
	var event model.WebhookEvent
	if err := c.Bind(&event); err != nil {
		slog.Warn("Rejecting malformed webhook payload", "error", err)
		return c.NoContent(http.StatusBadRequest)
	}
	if event.AccountID == "" || event.Statement.ID == "" {
		slog.Warn("Rejecting incomplete webhook payload", "account", event.AccountID)
		return c.NoContent(http.StatusBadRequest)
	}

	s.processor.Enqueue(event)
	return c.NoContent(http.StatusOK)
}
