package handlers

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"bikey/internal/app"
	importsController "bikey/internal/controllers/imports"
	"bikey/internal/logger"
	"bikey/internal/repositories"
	"bikey/internal/services"

	"github.com/gofiber/fiber/v2"
)

const UPLOAD_FIELD = "file"

type ImportsHandler struct {
	Handler
	importsController importsController.ImportsControllerInterface
}

func NewImportsHandler(app app.App, router fiber.Router) *ImportsHandler {
	log := logger.New("handlers").File("imports_handler")
	return &ImportsHandler{
		importsController: app.Controllers.Imports,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *ImportsHandler) Register() {
	imports := h.router.Group("/imports", h.middleware.RequireToken())
	imports.Post("", h.importDocument)
	imports.Get("", h.listImports)
}

// importDocument accepts either a multipart upload in the "file" field or
// the document as the raw request body.
func (h *ImportsHandler) importDocument(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("importDocument")

	filename, body, err := uploadedDocument(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	defer func() {
		if err := body.Close(); err != nil {
			log.Warn("failed to close upload", "error", err)
		}
	}()

	outcome, err := h.importsController.ImportDocument(c.UserContext(), filename, body)
	switch {
	case err == nil:
		return c.Status(fiber.StatusCreated).JSON(outcome)
	case errors.Is(err, services.ErrImportInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case importsController.IsDocumentError(err):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  err.Error(),
			"import": outcome,
		})
	default:
		log.Er("import failed", err, "filename", filename)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":  "Failed to import document",
			"import": outcome,
		})
	}
}

func (h *ImportsHandler) listImports(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", repositories.DEFAULT_IMPORT_RUN_LIMIT)

	runs, err := h.importsController.ListRecent(c.UserContext(), limit)
	if err != nil {
		h.log.Function("listImports").Er("failed to list imports", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list imports",
		})
	}

	return c.JSON(fiber.Map{"imports": runs})
}

func uploadedDocument(c *fiber.Ctx) (string, io.ReadCloser, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		header, err := c.FormFile(UPLOAD_FIELD)
		if err != nil {
			return "", nil, errors.New("multipart upload requires a \"file\" field")
		}
		file, err := header.Open()
		if err != nil {
			return "", nil, errors.New("could not read uploaded file")
		}
		return header.Filename, file, nil
	}

	body := c.Body()
	if len(body) == 0 {
		return "", nil, importsController.ErrEmptyUpload
	}
	return c.Query("filename"), io.NopCloser(bytes.NewReader(body)), nil
}
