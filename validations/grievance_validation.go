package validations

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/grievance"
	pkgError "github.com/himanshujainsanghai/up-igrs-new-sub002/pkg/error"
)

// Length bounds shared by the dialogue and the schema check.
const (
	NameMin        = 2
	NameMax        = 100
	TitleMin       = 5
	TitleMax       = 200
	DescriptionMin = 20
	DescriptionMax = 5000
	PlaceMin       = 2
	PlaceMax       = 100
	AreaMax        = 200
	LocationMax    = 500
)

var (
	namePattern   = regexp.MustCompile(`^[\p{L}\p{M} .'-]+$`)
	placePattern  = regexp.MustCompile(`^[\p{L}\p{M}0-9 .,'()/-]+$`)
	mobilePattern = regexp.MustCompile(`^(?:\+?91)?([6-9]\d{9})$`)
	coordPattern  = regexp.MustCompile(`^\s*([-+]?\d{1,3}(?:\.\d+)?)\s*(?:,\s*|\s+)([-+]?\d{1,3}(?:\.\d+)?)\s*$`)
	phoneNoise    = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

func fail(err error) error {
	if err == nil {
		return nil
	}
	return pkgError.ValidationError(err.Error())
}

// ValidateName trims v and checks it is a plausible person name.
func ValidateName(v string) (string, error) {
	v = collapseSpaces(v)
	err := validation.Validate(v,
		validation.Required.Error("Please enter your name"),
		validation.RuneLength(NameMin, NameMax).Error(fmt.Sprintf("Name must be %d-%d characters", NameMin, NameMax)),
		validation.Match(namePattern).Error("Name can only contain letters, spaces, dots, apostrophes and hyphens"),
	)
	return v, fail(err)
}

// ValidateEmail returns v lowercased when it is a valid address.
func ValidateEmail(v string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	err := validation.Validate(v,
		validation.Required.Error("Please enter your email address"),
		validation.RuneLength(3, 254).Error("Email address is too long"),
		is.EmailFormat.Error("That does not look like a valid email address (example: name@example.com)"),
	)
	return v, fail(err)
}

// ValidatePhone accepts a 10-digit Indian mobile starting with 6-9,
// optionally prefixed by +91 or 91, and returns it as +91XXXXXXXXXX.
func ValidatePhone(v string) (string, error) {
	cleaned := phoneNoise.Replace(strings.TrimSpace(v))
	m := mobilePattern.FindStringSubmatch(cleaned)
	if m == nil {
		return "", pkgError.ValidationError("Please enter a valid 10-digit mobile number starting with 6, 7, 8 or 9")
	}
	return "+91" + m[1], nil
}

func ValidateTitle(v string) (string, error) {
	v = collapseSpaces(v)
	err := validation.Validate(v,
		validation.Required.Error("Please enter a title"),
		validation.RuneLength(TitleMin, TitleMax).Error(fmt.Sprintf("Title must be %d-%d characters", TitleMin, TitleMax)),
	)
	return v, fail(err)
}

// ValidateDescription checks the final description length.
func ValidateDescription(v string) (string, error) {
	v = strings.TrimSpace(v)
	err := validation.Validate(v,
		validation.Required.Error("Please describe the issue"),
		validation.RuneLength(DescriptionMin, DescriptionMax).Error(
			fmt.Sprintf("Description must be %d-%d characters (currently %d)", DescriptionMin, DescriptionMax, len([]rune(v)))),
	)
	return v, fail(err)
}

// ValidateCategory matches v case-insensitively against the closed set.
func ValidateCategory(v string) (string, error) {
	c, ok := grievance.ParseCategory(v)
	if !ok {
		names := make([]string, len(grievance.Categories))
		for i, c := range grievance.Categories {
			names[i] = string(c)
		}
		return "", pkgError.ValidationError("Please choose one of: " + strings.Join(names, ", "))
	}
	return string(c), nil
}

func ValidateDistrict(v string) (string, error) {
	return validatePlace(v, "district", PlaceMax)
}

func ValidateSubdistrict(v string) (string, error) {
	return validatePlace(v, "subdistrict", PlaceMax)
}

func ValidateArea(v string) (string, error) {
	return validatePlace(v, "area", AreaMax)
}

func validatePlace(v, label string, maxLen int) (string, error) {
	v = collapseSpaces(v)
	err := validation.Validate(v,
		validation.Required.Error("Please enter the "+label),
		validation.RuneLength(PlaceMin, maxLen).Error(fmt.Sprintf("The %s must be %d-%d characters", label, PlaceMin, maxLen)),
		validation.Match(placePattern).Error(fmt.Sprintf("The %s contains characters that are not allowed", label)),
	)
	return v, fail(err)
}

// ValidateLocationText checks the optional address text.
func ValidateLocationText(v string) (string, error) {
	v = collapseSpaces(v)
	err := validation.Validate(v,
		validation.RuneLength(0, LocationMax).Error(fmt.Sprintf("Location text must be at most %d characters", LocationMax)),
	)
	return v, fail(err)
}

func ValidateLatitude(v float64) error {
	return validateCoordinate(v, 90, "Latitude")
}

func ValidateLongitude(v float64) error {
	return validateCoordinate(v, 180, "Longitude")
}

func validateCoordinate(v, bound float64, label string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return pkgError.ValidationError(label + " must be a number")
	}
	err := validation.Validate(v,
		validation.Min(-bound).Error(fmt.Sprintf("%s must be between %g and %g", label, -bound, bound)),
		validation.Max(bound).Error(fmt.Sprintf("%s must be between %g and %g", label, -bound, bound)),
	)
	return fail(err)
}

// ParseCoordinates reads "lat, long" or "lat long" and range-checks both values.
func ParseCoordinates(v string) (float64, float64, error) {
	m := coordPattern.FindStringSubmatch(v)
	if m == nil {
		return 0, 0, pkgError.ValidationError(`Please share a location pin or type coordinates like "26.8467, 80.9462"`)
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, pkgError.ValidationError("Latitude must be a number")
	}
	long, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, pkgError.ValidationError("Longitude must be a number")
	}
	if err := ValidateLatitude(lat); err != nil {
		return 0, 0, err
	}
	if err := ValidateLongitude(long); err != nil {
		return 0, 0, err
	}
	return lat, long, nil
}

// ValidateGrievance is the schema check run before a grievance is created.
func ValidateGrievance(ctx context.Context, g grievance.Grievance) error {
	categories := make([]any, len(grievance.Categories))
	for i, c := range grievance.Categories {
		categories[i] = c
	}

	err := validation.ValidateStructWithContext(ctx, &g,
		validation.Field(&g.Name, validation.Required, validation.RuneLength(NameMin, NameMax), validation.Match(namePattern)),
		validation.Field(&g.Email, validation.Required, is.EmailFormat),
		validation.Field(&g.Phone, validation.Match(regexp.MustCompile(`^\+91[6-9]\d{9}$`))),
		validation.Field(&g.Title, validation.Required, validation.RuneLength(TitleMin, TitleMax)),
		validation.Field(&g.Description, validation.Required, validation.RuneLength(DescriptionMin, DescriptionMax)),
		validation.Field(&g.Category, validation.Required, validation.In(categories...)),
		validation.Field(&g.District, validation.Required, validation.RuneLength(PlaceMin, PlaceMax)),
		validation.Field(&g.Subdistrict, validation.Required, validation.RuneLength(PlaceMin, PlaceMax)),
		validation.Field(&g.Area, validation.Required, validation.RuneLength(PlaceMin, AreaMax)),
		validation.Field(&g.Location, validation.RuneLength(0, LocationMax)),
		validation.Field(&g.Attachments, validation.Each(validation.By(submittableAttachment))),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	if (g.Latitude == nil) != (g.Longitude == nil) {
		return pkgError.ValidationError("latitude and longitude must be provided together")
	}
	if g.Latitude != nil {
		if err := ValidateLatitude(*g.Latitude); err != nil {
			return err
		}
		if err := ValidateLongitude(*g.Longitude); err != nil {
			return err
		}
	}
	return nil
}

func submittableAttachment(value any) error {
	a, ok := value.(grievance.Attachment)
	if !ok {
		return fmt.Errorf("unexpected attachment type %T", value)
	}
	if !a.Submittable() {
		return fmt.Errorf("attachment %q has no stored url", a.FileName)
	}
	return nil
}

func collapseSpaces(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
