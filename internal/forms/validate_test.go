package forms

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clc-ministry/forms-backend/internal/models"
)

func workshopPayload() map[string]any {
	return map[string]any{
		"firstName":        "  Ana ",
		"lastName":         "Lee",
		"phoneNumber":      "555-0100",
		"yearsAtClc":       "3",
		"encounterCollide": true,
		"dateOfBirth":      "2008-01-01",
		"grade":            "10",
		"audition":         false,
	}
}

func TestValidateWorkshopNormalizes(t *testing.T) {
	rec, err := Validate(models.KindWorkshop, workshopPayload())
	require.NoError(t, err)

	reg, ok := rec.(*models.WorkshopRegistration)
	require.True(t, ok)
	assert.Equal(t, "Ana", reg.FirstName)
	assert.Equal(t, "Lee", reg.LastName)
	assert.Equal(t, 3.0, reg.YearsAtCLC)
	assert.True(t, reg.EncounterCollide)
	assert.False(t, reg.Audition)
	assert.False(t, reg.Present)
	assert.Empty(t, reg.RegistrationID)
}

func TestValidateReportsEveryMissingField(t *testing.T) {
	payload := workshopPayload()
	delete(payload, "firstName")
	payload["grade"] = "   "
	payload["audition"] = nil

	_, err := Validate(models.KindWorkshop, payload)
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"firstName", "grade", "audition"}, verr.Missing)
	assert.Equal(t, "Missing required fields", verr.Message())
}

func TestValidateEmptyPayloadListsAllRequired(t *testing.T) {
	_, err := Validate(models.KindWorkshop, nil)
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, RequiredFields(models.KindWorkshop), verr.Missing)
}

func TestValidateRejectsStringBooleans(t *testing.T) {
	payload := workshopPayload()
	payload["encounterCollide"] = "true"
	payload["audition"] = "no"

	_, err := Validate(models.KindWorkshop, payload)
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Empty(t, verr.Missing)
	assert.Equal(t, []string{"audition", "encounterCollide"}, verr.InvalidFields())
	assert.Equal(t, "Invalid boolean fields", verr.Message())
}

func TestValidateSingleStringBoolean(t *testing.T) {
	payload := workshopPayload()
	payload["encounterCollide"] = "true"

	_, err := Validate(models.KindWorkshop, payload)
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"encounterCollide"}, verr.InvalidFields())
	assert.Equal(t, "Invalid boolean fields", verr.Message())
}

func TestValidateNumbers(t *testing.T) {
	cases := []struct {
		name  string
		value any
		ok    bool
	}{
		{"numeric string", "3", true},
		{"json number", json.Number("4"), true},
		{"float", 2.5, true},
		{"zero", 0.0, true},
		{"negative", "-1", false},
		{"too large", 101.0, false},
		{"not a number", "three", false},
		{"infinity", "Inf", false},
		{"nan", "NaN", false},
		{"boolean", true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := workshopPayload()
			payload["yearsAtClc"] = tc.value
			_, err := Validate(models.KindWorkshop, payload)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			verr, ok := AsValidationError(err)
			require.True(t, ok)
			assert.Equal(t, "Invalid yearsAtClc", verr.Message())
		})
	}
}

func TestValidateStringLength(t *testing.T) {
	payload := workshopPayload()
	payload["firstName"] = strings.Repeat("a", 51)
	payload["phoneNumber"] = strings.Repeat("5", 21)

	_, err := Validate(models.KindWorkshop, payload)
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"firstName", "phoneNumber"}, verr.InvalidFields())
	assert.Equal(t, "Invalid fields", verr.Message())
	assert.Equal(t, "must be at most 50 characters", verr.Details()["firstName"])
}

func TestValidateStringAtLimit(t *testing.T) {
	payload := workshopPayload()
	payload["firstName"] = strings.Repeat("é", 50)

	rec, err := Validate(models.KindWorkshop, payload)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 50), rec.(*models.WorkshopRegistration).FirstName)
}

func TestValidateOrder(t *testing.T) {
	rec, err := Validate(models.KindOrder, map[string]any{
		"name":     "Marie ",
		"phone":    "555-0199",
		"email":    "",
		"quantity": 2.0,
		"notes":    " extra sauce ",
	})
	require.NoError(t, err)
	order := rec.(*models.SpaghettiOrder)
	assert.Equal(t, "Marie", order.Name)
	assert.Equal(t, 2, order.Quantity)
	assert.Equal(t, "extra sauce", order.Notes)
	assert.Empty(t, order.Email)
}

func TestValidateOrderRules(t *testing.T) {
	_, err := Validate(models.KindOrder, map[string]any{
		"name":     "Marie",
		"phone":    "555-0199",
		"email":    "not-an-email",
		"quantity": 1.5,
	})
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"email", "quantity"}, verr.InvalidFields())

	_, err = Validate(models.KindOrder, map[string]any{"name": "Marie", "phone": "1", "quantity": 0.0})
	verr, ok = AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid quantity", verr.Message())
}

func TestValidateUnknownKind(t *testing.T) {
	_, err := Validate(models.Kind("audition"), map[string]any{})
	require.Error(t, err)
	_, ok := AsValidationError(err)
	assert.False(t, ok)
}
