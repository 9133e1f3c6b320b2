package controllers

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/angelmondragon/propertyledger-backend/api/responses"
	"github.com/angelmondragon/propertyledger-backend/internal/usageimport"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
)

const (
	maxImportBytes  = 10 << 20
	importFormField = "file"
)

// UsageImporter is the CSV entry point of the usage importer.
type UsageImporter interface {
	ImportCSV(ctx context.Context, r io.Reader, opts usageimport.Options) (usageimport.BatchResult, error)
}

// InvoiceImportCSV applies a meter-reading export. The body is either raw
// text/csv or a multipart form with the CSV under "file". Row failures are
// reported in the result; only unreadable input fails the request.
func InvoiceImportCSV(importer UsageImporter, opts usageimport.Options, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

		source, closeFn, err := importSource(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer closeFn()

		result, err := importer.ImportCSV(ctx, source, opts)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"accepted": result.Accepted,
				"rejected": len(result.Rejected),
			}), "usage import finished")
		}
		responses.WriteSuccess(w, result)
	}
}

func importSource(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}
	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		file, _, err := r.FormFile(importFormField)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "multipart field \"file\" is required")
		}
		return file, func() { _ = file.Close() }, nil
	case mediaType == "text/csv", mediaType == "text/plain", mediaType == "application/csv":
		return r.Body, func() {}, nil
	}
	return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "content type must be text/csv or multipart/form-data")
}
