package api

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/THE-REBEL-A4IF-V4U/rebel-song-detect/backend"
)

const AppVersion = "1.1.0"

// maxForwardedUpstream caps how much of a non-JSON upstream body is echoed.
const maxForwardedUpstream = 2 << 10

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.SendString("Rebel song detect API is running.")
}

// Health check
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "ok",
		"version":     AppVersion,
		"recognition": s.config.RecognitionKey != "" && s.config.RecognitionURL != "",
	})
}

// handleStatus reports upstream reachability. Results are cached by the probe.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":  true,
		"services": s.probe.Check(c.UserContext()),
	})
}

// ============== Media ==============

func (s *Server) handleMedia(c *fiber.Ctx) error {
	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Missing 'url' query parameter.",
		})
	}

	desc, err := s.resolver.Resolve(c.UserContext(), rawURL)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "result": desc})
}

// ============== Song Detection ==============

// handleSongDetect accepts a multipart form with an optional "file" and an
// optional "url". When both are sent the file wins; the ignored url is
// logged and reported in the X-Ignored-Input header.
func (s *Server) handleSongDetect(c *fiber.Ctx) error {
	rawURL := strings.TrimSpace(c.FormValue("url"))
	fh, fileErr := c.FormFile("file")

	var req backend.DetectionRequest
	switch {
	case fileErr == nil && fh != nil:
		if rawURL != "" {
			backend.Logger.Info("both file and url sent, using file", "url", rawURL)
			c.Set("X-Ignored-Input", "url")
		}

		upload, err := s.scratch.Reserve(filepath.Ext(fh.Filename))
		if err != nil {
			return s.writeError(c, err)
		}
		defer upload.Release()

		if err := c.SaveFile(fh, upload.Path()); err != nil {
			return s.writeError(c, err)
		}
		req = backend.UploadedFile(upload)

	case rawURL != "":
		req = backend.RemoteURL(rawURL)

	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Upload a file or provide url in 'url' field.",
		})
	}

	detected, err := s.detector.Detect(c.UserContext(), req)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "detected": detected})
}

// ============== Errors ==============

func statusFor(kind backend.ErrorKind) int {
	switch kind {
	case backend.KindBadRequest, backend.KindUnsupportedPlatform:
		return fiber.StatusBadRequest
	case backend.KindNotFound:
		return fiber.StatusNotFound
	case backend.KindPayloadTooLarge:
		return fiber.StatusRequestEntityTooLarge
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err as {success:false, error, kind[, upstream]}.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	kind := backend.KindOf(err)
	status := statusFor(kind)

	if status >= fiber.StatusInternalServerError {
		backend.Logger.Error("request failed", "path", c.Path(), "kind", kind, "error", err)
	} else {
		backend.Logger.Info("request rejected", "path", c.Path(), "kind", kind, "error", err)
	}

	body := fiber.Map{
		"success": false,
		"error":   err.Error(),
		"kind":    kind,
	}
	if up := backend.UpstreamBody(err); len(up) > 0 {
		body["upstream"] = forwardable(up)
	}
	return c.Status(status).JSON(body)
}

func forwardable(body []byte) any {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	if len(body) > maxForwardedUpstream {
		body = body[:maxForwardedUpstream]
	}
	return string(body)
}
