package crm

// Contact is the lead data sent to the CRM.
type Contact struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

// Result is produced per call and never persisted directly.
type Result struct {
	Success   bool   `json:"success"`
	ContactID string `json:"contact_id,omitempty"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

const (
	ErrorCodeNoToken         = "no_api_token"
	ErrorCodeRequestFailed   = "http_request_failed"
	ErrorCodeInvalidResponse = "invalid_response"
)

const (
	MessageNoToken           = "HubSpot API token is not configured."
	MessageCreated           = "Contact created successfully in HubSpot."
	MessageUpdated           = "Contact updated successfully in HubSpot."
	MessageConnectionOK      = "HubSpot API connection successful."
	MessageMissingContactID  = "HubSpot did not return a contact id."
	messageConnectionFailedF = "HubSpot API connection failed: %s"
)

// Fixed markers attached to every lead.
const (
	LeadStatusNew  = "NEW"
	LifecycleLead  = "lead"
	maxNoteMessage = 1000
)
