package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// State errors (M001-M099)
	// ============================================

	"M001": {
		Category: CategoryUsage,
		Message:  "Missing required store id",
		Detail:   "A state bus is looked up by a non-empty store id.",
	},
	"M002": {
		Category: CategoryUsage,
		Message:  "Value is not JSON serializable",
		Detail:   "Persisted values are stored as JSON text and must marshal cleanly.",
	},
	"M003": {
		Category: CategoryUsage,
		Message:  "Reserved state property",
		Detail:   "Reserved names address the bus itself and cannot be assigned.",
	},
	"M004": {
		Category: CategoryUsage,
		Message:  "Too many keys for one feed",
		Detail:   "A websocket feed subscribes to a bounded number of keys when it opens; subscribe to the rest with client ops.",
	},
	"M020": {
		Category: CategoryPersist,
		Message:  "Persisted value could not be decoded",
		Detail:   "The medium returned text that is not valid JSON.",
	},
	"M021": {
		Category: CategoryPersist,
		Message:  "Persistent medium write failed",
		Detail:   "The value is stored in memory but the medium rejected the write.",
	},
	"M022": {
		Category: CategoryPersist,
		Message:  "Persistent medium remove failed",
		Detail:   "The medium rejected the removal of a persisted key.",
	},
	"M023": {
		Category: CategoryPersist,
		Message:  "Persistent medium closed",
		Detail:   "Operations were attempted on a medium that has been closed.",
	},

	// ============================================
	// Router errors (M100-M199)
	// ============================================

	"M100": {
		Category: CategoryUsage,
		Message:  "Router requires a root element to mount to",
	},
	"M101": {
		Category: CategoryUsage,
		Message:  "Route requires a path and a renderable element",
	},
	"M102": {
		Category: CategoryNavigation,
		Message:  "Redirect target must be a registered path",
	},
	"M103": {
		Category: CategoryNavigation,
		Message:  "Router requires at least one registered path",
	},
	"M104": {
		Category: CategoryNavigation,
		Message:  "Too many redirects",
		Detail:   "The authorization gate kept redirecting without settling on a page.",
	},

	// ============================================
	// Config errors (M200-M299)
	// ============================================

	"M200": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
	},
	"M201": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},

	// ============================================
	// CLI errors (M300-M399)
	// ============================================

	"M300": {
		Category: CategoryCLI,
		Message:  "Invalid command arguments",
	},
	"M301": {
		Category: CategoryCLI,
		Message:  "Key not found",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
