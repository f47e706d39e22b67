package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime Errors (E001-E099)
	// ============================================

	"E001": {
		Category: CategoryRuntime,
		Message:  "Hook called outside an owner scope",
		Detail:   "Hook-style APIs like querystate.Use must be called inside a session scope established with reactive.WithOwner.",
		DocURL:   "https://querysync.dev/docs/errors/E001",
	},
	"E002": {
		Category: CategoryRuntime,
		Message:  "Hook order changed between renders",
		Detail:   "Hooks must be called unconditionally and in the same order on every render of a scope.",
		DocURL:   "https://querysync.dev/docs/errors/E002",
	},
	"E003": {
		Category: CategoryRuntime,
		Message:  "Hook slot type mismatch",
		Detail:   "A hook slot held a value of a different type than expected. This usually means two different hooks swapped positions between renders.",
		DocURL:   "https://querysync.dev/docs/errors/E003",
	},

	// ============================================
	// Validation Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryValidation,
		Message:  "Incomplete codec pair",
		Detail:   "A binding was configured with only one of Encode/Decode. Custom codecs must supply both directions.",
		DocURL:   "https://querysync.dev/docs/errors/E100",
	},
	"E101": {
		Category: CategoryValidation,
		Message:  "Binding has no key and no codec",
		Detail:   "A binding needs either a query key (single-field binding) or a custom Encode/Decode pair that declares its own key set.",
		DocURL:   "https://querysync.dev/docs/errors/E101",
	},

	// ============================================
	// Config Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "querysync.json could not be parsed.",
		DocURL:   "https://querysync.dev/docs/errors/E120",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Invalid session store",
		Detail:   "Session store must be one of: memory, s3.",
		DocURL:   "https://querysync.dev/docs/errors/E121",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Missing S3 bucket",
		Detail:   "Session store \"s3\" requires session.bucket to be set.",
		DocURL:   "https://querysync.dev/docs/errors/E122",
	},
	"E123": {
		Category: CategoryConfig,
		Message:  "Invalid port",
		Detail:   "Server port must be between 1 and 65535.",
		DocURL:   "https://querysync.dev/docs/errors/E123",
	},

	// ============================================
	// Protocol Errors (E140-E159)
	// ============================================

	"E140": {
		Category: CategoryProtocol,
		Message:  "Malformed client frame",
		Detail:   "The client sent a frame that could not be decoded.",
		DocURL:   "https://querysync.dev/docs/errors/E140",
	},
	"E141": {
		Category: CategoryProtocol,
		Message:  "Unknown event handler",
		Detail:   "The client referenced an event handler that is not registered on the session.",
		DocURL:   "https://querysync.dev/docs/errors/E141",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
