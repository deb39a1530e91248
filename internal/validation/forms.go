package validation

// Appointment status values accepted by the backend.
const (
	StatusScheduled = "scheduled"
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
)

// RegisterPatientForm is the patient registration payload.
type RegisterPatientForm struct {
	Name                   string `json:"name" validate:"required,min=2,max=50"`
	Email                  string `json:"email" validate:"required,email"`
	Phone                  string `json:"phone" validate:"required,phone"`
	BirthDate              string `json:"birthDate" validate:"required,datetime=2006-01-02"`
	Gender                 string `json:"gender" validate:"required,oneof=male female other"`
	Address                string `json:"address" validate:"required,min=5,max=500"`
	Occupation             string `json:"occupation" validate:"required,min=2,max=500"`
	EmergencyContactName   string `json:"emergencyContactName" validate:"required,min=2,max=50"`
	EmergencyContactNumber string `json:"emergencyContactNumber" validate:"required,phone"`
	PrimaryPhysician       string `json:"primaryPhysician" validate:"required,min=2"`
	InsuranceProvider      string `json:"insuranceProvider" validate:"required,min=2,max=50"`
	InsurancePolicyNumber  string `json:"insurancePolicyNumber" validate:"required,min=2,max=50"`
	Allergies              string `json:"allergies,omitempty" validate:"omitempty,max=1000"`
	CurrentMedication      string `json:"currentMedication,omitempty" validate:"omitempty,max=1000"`
	FamilyMedicalHistory   string `json:"familyMedicalHistory,omitempty" validate:"omitempty,max=1000"`
	PastMedicalHistory     string `json:"pastMedicalHistory,omitempty" validate:"omitempty,max=1000"`
	IdentificationType     string `json:"identificationType,omitempty" validate:"omitempty,max=50"`
	IdentificationNumber   string `json:"identificationNumber,omitempty" validate:"required_with=IdentificationType,omitempty,max=50"`
	IdentificationDocument string `json:"identificationDocumentId,omitempty" validate:"omitempty,max=200"`
	TreatmentConsent       bool   `json:"treatmentConsent" validate:"eq=true"`
	DisclosureConsent      bool   `json:"disclosureConsent" validate:"eq=true"`
	PrivacyConsent         bool   `json:"privacyConsent" validate:"eq=true"`
}

// BookAppointmentForm is the patient-side booking payload.
type BookAppointmentForm struct {
	PatientID        string `json:"patientId" validate:"required,alphanum,max=64"`
	PrimaryPhysician string `json:"primaryPhysician" validate:"required,min=2"`
	Schedule         string `json:"schedule" validate:"required,datetime=2006-01-02T15:04:05Z07:00,future"`
	Reason           string `json:"reason" validate:"required,min=2,max=500"`
	Note             string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// UpdateAppointmentForm is the admin schedule/cancel payload.
type UpdateAppointmentForm struct {
	Status             string `json:"status" validate:"required,oneof=scheduled pending cancelled"`
	PrimaryPhysician   string `json:"primaryPhysician,omitempty" validate:"omitempty,min=2"`
	Schedule           string `json:"schedule,omitempty" validate:"required_if=Status scheduled,omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	CancellationReason string `json:"cancellationReason,omitempty" validate:"required_if=Status cancelled,omitempty,min=2,max=500"`
}

// PasskeyForm is the admin passkey check payload.
type PasskeyForm struct {
	Passkey string `json:"passkey" validate:"required,len=6,numeric"`
}

// IDParam is a backend record id taken from the route path.
type IDParam struct {
	ID string `json:"id" validate:"required,resourceid"`
}
