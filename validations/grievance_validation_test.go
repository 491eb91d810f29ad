package validations

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/grievance"
	pkgError "github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLatitudeBounds(t *testing.T) {
	for _, ok := range []float64{-90, -45.5, 0, 26.8467, 90} {
		assert.NoError(t, ValidateLatitude(ok), "latitude %v", ok)
	}
	for _, bad := range []float64{-90.0001, 90.0001, 91, -180, math.NaN(), math.Inf(1)} {
		assert.Error(t, ValidateLatitude(bad), "latitude %v", bad)
	}
}

func TestValidateLongitudeBounds(t *testing.T) {
	for _, ok := range []float64{-180, 0, 80.9462, 180} {
		assert.NoError(t, ValidateLongitude(ok), "longitude %v", ok)
	}
	for _, bad := range []float64{-180.5, 181, math.NaN(), math.Inf(-1)} {
		assert.Error(t, ValidateLongitude(bad), "longitude %v", bad)
	}
}

func TestValidatePhone(t *testing.T) {
	cases := map[string]string{
		"9876543210":       "+919876543210",
		"+91 98765 43210":  "+919876543210",
		"919876543210":     "+919876543210",
		"6000000000":       "+916000000000",
		"+91-7012-345-678": "+917012345678",
	}
	for in, want := range cases {
		got, err := ValidatePhone(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "5876543210", "98765", "98765432101", "+1 9876543210", "abcdefghij"} {
		_, err := ValidatePhone(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateName(t *testing.T) {
	got, err := ValidateName("  Ram   Kumar ")
	require.NoError(t, err)
	assert.Equal(t, "Ram Kumar", got)

	_, err = ValidateName("राम कुमार")
	assert.NoError(t, err)

	for _, bad := range []string{"", "R", "R2D2", strings.Repeat("a", NameMax+1)} {
		_, err := ValidateName(bad)
		assert.Error(t, err, bad)
	}

	_, err = ValidateName(strings.Repeat("a", NameMax))
	assert.NoError(t, err)
}

func TestValidateEmail(t *testing.T) {
	got, err := ValidateEmail(" Ram@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "ram@example.com", got)

	for _, bad := range []string{"", "ram", "ram@", "@example.com"} {
		_, err := ValidateEmail(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateCategory(t *testing.T) {
	got, err := ValidateCategory(" ROADS ")
	require.NoError(t, err)
	assert.Equal(t, "roads", got)

	_, err = ValidateCategory("potholes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "electricity")
}

func TestValidateDescriptionBounds(t *testing.T) {
	_, err := ValidateDescription(strings.Repeat("x", DescriptionMin-1))
	assert.Error(t, err)
	_, err = ValidateDescription(strings.Repeat("x", DescriptionMin))
	assert.NoError(t, err)
	_, err = ValidateDescription(strings.Repeat("x", DescriptionMax))
	assert.NoError(t, err)
	_, err = ValidateDescription(strings.Repeat("x", DescriptionMax+1))
	assert.Error(t, err)
}

func TestValidatePlaces(t *testing.T) {
	_, err := ValidateDistrict("Lucknow")
	assert.NoError(t, err)
	_, err = ValidateSubdistrict("Mohanlalganj")
	assert.NoError(t, err)
	_, err = ValidateArea("Sector 12, Gomti Nagar")
	assert.NoError(t, err)

	_, err = ValidateDistrict("L")
	assert.Error(t, err)
	_, err = ValidateArea("<script>")
	assert.Error(t, err)
	_, err = ValidateArea(strings.Repeat("a", AreaMax+1))
	assert.Error(t, err)
}

func TestParseCoordinates(t *testing.T) {
	lat, long, err := ParseCoordinates("26.8467, 80.9462")
	require.NoError(t, err)
	assert.InDelta(t, 26.8467, lat, 1e-9)
	assert.InDelta(t, 80.9462, long, 1e-9)

	lat, long, err = ParseCoordinates("-33.9 151.2")
	require.NoError(t, err)
	assert.InDelta(t, -33.9, lat, 1e-9)
	assert.InDelta(t, 151.2, long, 1e-9)

	for _, bad := range []string{"", "near the temple", "91, 80", "26.8, 181", "26.8"} {
		_, _, err := ParseCoordinates(bad)
		assert.Error(t, err, bad)
	}
}

func validGrievance() grievance.Grievance {
	lat, long := 26.8467, 80.9462
	return grievance.Grievance{
		Name:        "Ram Kumar",
		Email:       "ram@example.com",
		Phone:       "+919876543210",
		Title:       "Pothole on Main St",
		Description: "Pothole on Main St\nIt has grown after rain",
		Category:    grievance.CategoryRoads,
		District:    "Lucknow",
		Subdistrict: "Lucknow Sadar",
		Area:        "Hazratganj",
		Latitude:    &lat,
		Longitude:   &long,
		Attachments: []grievance.Attachment{{URL: "https://files.example.com/a.jpg", FileName: "a.jpg", MimeType: "image/jpeg", MediaID: "m1"}},
	}
}

func TestValidateGrievance(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, ValidateGrievance(ctx, validGrievance()))

	noCoords := validGrievance()
	noCoords.Latitude, noCoords.Longitude = nil, nil
	assert.NoError(t, ValidateGrievance(ctx, noCoords), "coordinates are optional as a pair")

	halfCoords := validGrievance()
	halfCoords.Longitude = nil
	assert.Error(t, ValidateGrievance(ctx, halfCoords))

	missingEmail := validGrievance()
	missingEmail.Email = ""
	err := ValidateGrievance(ctx, missingEmail)
	require.Error(t, err)
	var vErr pkgError.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Contains(t, err.Error(), "email")

	badCategory := validGrievance()
	badCategory.Category = "potholes"
	assert.Error(t, ValidateGrievance(ctx, badCategory))

	unstored := validGrievance()
	unstored.Attachments = append(unstored.Attachments, grievance.Attachment{FileName: "b.jpg", MediaID: "m2"})
	assert.Error(t, ValidateGrievance(ctx, unstored))
}
