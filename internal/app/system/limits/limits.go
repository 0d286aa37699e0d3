// internal/app/system/limits/limits.go
package limits

// Request and response size limits.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBody is the largest JSON request body the API decodes.
	MaxJSONBody = 1 << 20 // 1 MB

	// MaxExportRows caps a single CSV download. Larger datasets must be
	// narrowed with filters.
	MaxExportRows = 20000
)
