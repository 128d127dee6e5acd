package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/usecase/claim"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestApplyFlags(t *testing.T) {
	t.Run("window defaults to one hour from the incident date", func(t *testing.T) {
		var in model.ClaimInput
		gt.NoError(t, applyFlags(&in, "theft", "Car stolen from the driveway overnight", "zone_d", "2025-03-14T09:30", "", ""))
		gt.Equal(t, in.IncidentType, model.IncidentTypeTheft)
		gt.Equal(t, in.LocationZone, model.LocationZoneD)
		gt.Equal(t, in.IncidentDate, time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))
		gt.Equal(t, in.TimeWindow.Start, in.IncidentDate)
		gt.Equal(t, in.TimeWindow.End, in.IncidentDate.Add(time.Hour))
		gt.NoError(t, in.Validate())
	})

	t.Run("flags override input file", func(t *testing.T) {
		in := model.ClaimInput{
			IncidentType:      model.IncidentTypeFire,
			DamageDescription: "Kitchen fire spread to the living room",
		}
		gt.NoError(t, applyFlags(&in, "", "", "zone_a", "2025-03-14", "2025-03-13", "2025-03-14T10:00:00Z"))
		gt.Equal(t, in.IncidentType, model.IncidentTypeFire)
		gt.Equal(t, in.DamageDescription, "Kitchen fire spread to the living room")
		gt.Equal(t, in.TimeWindow.Start, time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC))
	})

	t.Run("window missing from input file is reported", func(t *testing.T) {
		date := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
		in := model.ClaimInput{
			IncidentType:      model.IncidentTypeTheft,
			DamageDescription: "Car stolen from the driveway overnight",
			LocationZone:      model.LocationZoneD,
			IncidentDate:      date,
		}
		gt.NoError(t, applyFlags(&in, "", "", "", "", "", ""))
		gt.True(t, in.TimeWindow.Start.IsZero())
		gt.True(t, in.TimeWindow.End.IsZero())

		var fe *model.FieldError
		gt.True(t, errors.As(in.Validate(), &fe))
		gt.Equal(t, fe.Field, "incident_time_window_start")
	})

	t.Run("window end missing from input file is reported", func(t *testing.T) {
		date := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
		in := model.ClaimInput{
			IncidentType:      model.IncidentTypeTheft,
			DamageDescription: "Car stolen from the driveway overnight",
			LocationZone:      model.LocationZoneD,
			IncidentDate:      date,
			TimeWindow:        model.TimeWindow{Start: date},
		}
		gt.NoError(t, applyFlags(&in, "", "", "", "", "", ""))
		gt.True(t, in.TimeWindow.End.IsZero())

		var fe *model.FieldError
		gt.True(t, errors.As(in.Validate(), &fe))
		gt.Equal(t, fe.Field, "incident_time_window_end")
	})

	t.Run("window end defaults from window start flag", func(t *testing.T) {
		in := model.ClaimInput{IncidentDate: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)}
		gt.NoError(t, applyFlags(&in, "", "", "", "", "2025-03-14T08:00:00Z", ""))
		gt.Equal(t, in.TimeWindow.End, time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	})

	t.Run("unparsable date is a validation error", func(t *testing.T) {
		var in model.ClaimInput
		err := applyFlags(&in, "", "", "", "yesterday", "", "")
		gt.True(t, errors.Is(err, model.ErrValidation))
	})
}

func TestReadImages(t *testing.T) {
	_, err := readImages([]string{"testdata/does-not-exist.png"})
	gt.Error(t, err)

	images, err := readImages(nil)
	gt.NoError(t, err)
	gt.A(t, images).Length(0)
}

func TestUserMessage(t *testing.T) {
	validation := goerr.Wrap(&model.FieldError{Field: "location_zone", Message: "must be one of: zone_a"}, "invalid claim submission")
	gt.Equal(t, userMessage(validation), "invalid claim: location_zone: must be one of: zone_a")
	gt.Equal(t, exitCode(validation), 2)

	processing := goerr.Wrap(claim.ErrProcessing, "claim analysis aborted", goerr.V("reference_id", "CLM-12345678"))
	gt.Equal(t, userMessage(processing), "claim processing failed, try again later")
	gt.Equal(t, exitCode(processing), 1)
}
