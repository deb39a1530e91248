package backend

// Backend API paths.
const (
	PathPatients     = "/api/patients"
	PathAppointments = "/api/appointments"
	PathUsers        = "/api/users"
	PathUploads      = "/api/uploads"
)

// Headers copied from the incoming request to the backend call.
var forwardedHeaders = []string{
	"Authorization",
	"Content-Type",
	"Accept",
	"Accept-Language",
	"X-Request-Id",
}

const defaultContentType = "application/json"

// maxJSONBody caps how much of a backend reply FetchJSON will decode.
const maxJSONBody = 8 << 20
