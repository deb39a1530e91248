package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func validPatient() RegisterPatientForm {
	return RegisterPatientForm{
		Name:                   "Ada Obi",
		Email:                  "ada@example.com",
		Phone:                  "+2348012345678",
		BirthDate:              "1990-04-12",
		Gender:                 "female",
		Address:                "12 Marina Road, Lagos",
		Occupation:             "Engineer",
		EmergencyContactName:   "Chidi Obi",
		EmergencyContactNumber: "+2348098765432",
		PrimaryPhysician:       "Dr. Green",
		InsuranceProvider:      "BlueCross",
		InsurancePolicyNumber:  "ABC123456",
		TreatmentConsent:       true,
		DisclosureConsent:      true,
		PrivacyConsent:         true,
	}
}

func TestValidate_RegisterPatient(t *testing.T) {
	cv := newWithClock(func() time.Time { return fixedNow })

	require.NoError(t, cv.Validate(validPatient()))

	form := validPatient()
	form.Email = "not-an-email"
	form.Phone = "0801"
	form.PrivacyConsent = false
	form.IdentificationType = "passport"

	err := cv.Validate(form)
	fe, ok := Fields(err)
	require.True(t, ok, "expected FieldErrors, got %v", err)
	assert.Equal(t, FieldErrors{
		"email":                "email",
		"phone":                "phone",
		"privacyConsent":       "eq",
		"identificationNumber": "required_with",
	}, fe)
	assert.Contains(t, err.Error(), "email: email")
}

func TestValidate_BookAppointment_ScheduleMustBeFuture(t *testing.T) {
	cv := newWithClock(func() time.Time { return fixedNow })

	form := BookAppointmentForm{
		PatientID:        "64f0c2a9e1",
		PrimaryPhysician: "Dr. Green",
		Schedule:         fixedNow.Add(48 * time.Hour).Format(ScheduleLayout),
		Reason:           "Annual check-up",
	}
	require.NoError(t, cv.Validate(form))

	form.Schedule = "2026-03-03T10:30:00.000Z"
	require.NoError(t, cv.Validate(form), "fractional seconds from browsers must parse")

	form.Schedule = fixedNow.Add(-time.Hour).Format(ScheduleLayout)
	fe, ok := Fields(cv.Validate(form))
	require.True(t, ok)
	assert.Equal(t, "future", fe["schedule"])

	form.Schedule = "next tuesday"
	fe, _ = Fields(cv.Validate(form))
	assert.Equal(t, "datetime", fe["schedule"])
}

func TestValidate_UpdateAppointment_ConditionalFields(t *testing.T) {
	cv := New()

	cases := []struct {
		name string
		form UpdateAppointmentForm
		want FieldErrors
	}{
		{"schedule ok", UpdateAppointmentForm{Status: StatusScheduled, Schedule: "2030-01-02T10:00:00Z"}, nil},
		{"schedule missing time", UpdateAppointmentForm{Status: StatusScheduled}, FieldErrors{"schedule": "required_if"}},
		{"cancel ok", UpdateAppointmentForm{Status: StatusCancelled, CancellationReason: "Doctor unavailable"}, nil},
		{"cancel missing reason", UpdateAppointmentForm{Status: StatusCancelled}, FieldErrors{"cancellationReason": "required_if"}},
		{"pending needs nothing", UpdateAppointmentForm{Status: StatusPending}, nil},
		{"unknown status", UpdateAppointmentForm{Status: "done"}, FieldErrors{"status": "oneof"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := cv.Validate(tc.form)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			fe, ok := Fields(err)
			require.True(t, ok, "expected FieldErrors, got %v", err)
			assert.Equal(t, tc.want, fe)
		})
	}
}

func TestValidate_Passkey(t *testing.T) {
	cv := New()

	assert.NoError(t, cv.Validate(PasskeyForm{Passkey: "123456"}))

	fe, _ := Fields(cv.Validate(PasskeyForm{Passkey: "12345"}))
	assert.Equal(t, "len", fe["passkey"])

	fe, _ = Fields(cv.Validate(PasskeyForm{Passkey: "12a456"}))
	assert.Equal(t, "numeric", fe["passkey"])
}

func TestValidate_NonStruct(t *testing.T) {
	err := New().Validate("just a string")
	require.Error(t, err)
	_, ok := Fields(err)
	assert.False(t, ok)
}

func TestValidate_ResourceID(t *testing.T) {
	cv := New()

	for _, id := range []string{"64f0c2a9e1", "3f2b8c1e-9d4a-4b7e-8f00-1a2b3c4d5e6f", "appt_01"} {
		assert.NoError(t, cv.Validate(IDParam{ID: id}), id)
	}
	for _, id := range []string{"", "../users", "-leading", "a b", "x?admin=1"} {
		assert.Error(t, cv.Validate(IDParam{ID: id}), id)
	}
}
