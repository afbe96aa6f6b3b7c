package vasp

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hmatter/ingot/internal/ctxlog"
)

// failureSignatures is the closed set of known VASP failure modes scanned
// for in a stalled job's output. Each entry pairs a short classification
// name with the log text that identifies it.
var failureSignatures = []struct {
	Name    string
	Pattern string
}{
	{"subspace_not_hermitian", "WARNING: Sub-Space-Matrix is not hermitian"},
	{"eddav_zhegv", "Error EDDDAV: Call to ZHEGV failed"},
	{"zbrent_fatal", "ZBRENT: fatal error"},
	{"too_few_bands", "TOO FEW BANDS"},
	{"zpotrf_failure", "LAPACK: Routine ZPOTRF failed"},
	{"fexcf_error", "ERROR FEXCF: supplied exchange-correlation table"},
	{"brions_problems", "BRIONS problems: POTIM should be increased"},
	{"sgrcon_error", "internal error in subroutine SGRCON"},
	{"pricel_error", "internal error in subroutine PRICEL"},
	{"rsphere_overflow", "ERROR RSPHER: internal error"},
}

// ErrorHandler scans VASP output for the known failure signatures. It is
// stateless; the same instance serves any job directory.
type ErrorHandler struct{}

// NewErrorHandler returns the VASP error handler.
func NewErrorHandler() *ErrorHandler {
	return &ErrorHandler{}
}

// CountErrors returns the number of distinct recognized failure signatures
// in dir's primary log. image > 0 restricts the scan to that numbered image
// sub-directory. Zero means no recognized failure: the job is likely still
// running, or failed in a way the signature table does not cover. The count
// is advisory; nothing is mutated and no retry is triggered.
func (h *ErrorHandler) CountErrors(ctx context.Context, dir string, image int) int {
	if image > 0 {
		dir = imageDir(dir, image)
	}
	data, err := os.ReadFile(filepath.Join(dir, FileOutcar))
	if err != nil {
		ctxlog.FromContext(ctx).Debug("error scan found no readable log", "dir", dir, "err", err)
		return 0
	}
	text := string(data)

	count := 0
	logger := ctxlog.FromContext(ctx)
	for _, sig := range failureSignatures {
		if strings.Contains(text, sig.Pattern) {
			logger.Warn("recognized failure signature", "dir", dir, "signature", sig.Name)
			count++
		}
	}
	return count
}
