package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/crossinsure/crossinsure/pkg/model"
	"github.com/crossinsure/crossinsure/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

var imageContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTime(field, s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, goerr.Wrap(&model.FieldError{
		Field:   field,
		Message: "must be a date such as 2025-03-14T09:30 or RFC3339",
	}, "failed to parse time", goerr.V("value", s))
}

func readImages(paths []string) ([]model.ImagePayload, error) {
	images := make([]model.ImagePayload, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read image", goerr.V("path", path))
		}
		images = append(images, model.ImagePayload{
			Data:        data,
			ContentType: imageContentTypes[strings.ToLower(filepath.Ext(path))],
			Filename:    filepath.Base(path),
		})
	}
	return images, nil
}

func submitCommand() *cli.Command {
	var (
		cfg          config
		inputPath    string
		incidentType string
		description  string
		zone         string
		date         string
		windowStart  string
		windowEnd    string
		submitterID  string
		username     string
		organization string
		quiet        bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to JSON file containing claim attributes",
			Destination: &inputPath,
		},
		&cli.StringFlag{
			Name:        "type",
			Aliases:     []string{"t"},
			Usage:       "Incident type (motor_damage, collision, theft, property_damage, fire, water_damage, other)",
			Destination: &incidentType,
		},
		&cli.StringFlag{
			Name:        "description",
			Usage:       "Damage description",
			Destination: &description,
		},
		&cli.StringFlag{
			Name:        "zone",
			Aliases:     []string{"z"},
			Usage:       "Location zone (zone_a .. zone_e)",
			Destination: &zone,
		},
		&cli.StringFlag{
			Name:        "date",
			Usage:       "Approximate incident date and time",
			Destination: &date,
		},
		&cli.StringFlag{
			Name:        "window-start",
			Usage:       "Start of the incident time window (default: --date)",
			Destination: &windowStart,
		},
		&cli.StringFlag{
			Name:        "window-end",
			Usage:       "End of the incident time window (default: one hour after start)",
			Destination: &windowEnd,
		},
		&cli.StringSliceFlag{
			Name:  "image",
			Usage: "Damage photo (jpeg, png, tiff, bmp). Repeat up to 5 times",
		},
		&cli.StringFlag{
			Name:        "submitter-id",
			Usage:       "Submitting user ID",
			Sources:     cli.EnvVars("CROSSINSURE_SUBMITTER_ID"),
			Destination: &submitterID,
		},
		&cli.StringFlag{
			Name:        "username",
			Usage:       "Submitting user name",
			Sources:     cli.EnvVars("CROSSINSURE_USERNAME"),
			Destination: &username,
		},
		&cli.StringFlag{
			Name:        "organization",
			Aliases:     []string{"o"},
			Usage:       "Submitting insurance company",
			Sources:     cli.EnvVars("CROSSINSURE_ORGANIZATION"),
			Destination: &organization,
		},
		&cli.BoolFlag{
			Name:        "quiet",
			Aliases:     []string{"q"},
			Usage:       "Do not show progress",
			Destination: &quiet,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, pipelineFlags(&cfg)...)

	return &cli.Command{
		Name:  "submit",
		Usage: "Submit a claim and screen it against historical incidents",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, closeAudit, err := cfg.setupLogging(ctx)
			if err != nil {
				return err
			}
			defer closeAudit()

			var input model.ClaimInput
			if inputPath != "" {
				data, err := os.ReadFile(inputPath)
				if err != nil {
					return goerr.Wrap(err, "failed to read input file", goerr.V("path", inputPath))
				}
				if err := json.Unmarshal(data, &input); err != nil {
					return goerr.Wrap(err, "failed to parse JSON")
				}
			}
			if err := applyFlags(&input, incidentType, description, zone, date, windowStart, windowEnd); err != nil {
				return err
			}

			images, err := readImages(c.StringSlice("image"))
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.From(ctx).Warn("failed to close repository", "error", err)
				}
			}()

			uc, err := cfg.newUseCase(ctx, repo, true)
			if err != nil {
				return err
			}

			if !quiet {
				s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				s.Suffix = " analyzing claim against historical incidents..."
				s.Start()
				defer s.Stop()
			}

			result, err := uc.SubmitAndAnalyze(ctx, model.Submitter{
				ID:           submitterID,
				Username:     username,
				Organization: organization,
			}, input, images)
			if err != nil {
				logging.From(ctx).Error("claim submission failed", "error", err)
				return err
			}

			return writeJSON(c.Root().Writer, result)
		},
	}
}

// applyFlags overrides attributes read from the input file with explicit flags.
// The time window defaults to one hour from --date or --window-start.
func applyFlags(in *model.ClaimInput, incidentType, description, zone, date, windowStart, windowEnd string) error {
	if incidentType != "" {
		in.IncidentType = model.IncidentType(incidentType)
	}
	if description != "" {
		in.DamageDescription = description
	}
	if zone != "" {
		in.LocationZone = model.LocationZone(zone)
	}

	if date != "" {
		t, err := parseTime("incident_date_approx", date)
		if err != nil {
			return err
		}
		in.IncidentDate = t
	}
	if windowStart != "" {
		t, err := parseTime("incident_time_window_start", windowStart)
		if err != nil {
			return err
		}
		in.TimeWindow.Start = t
	}
	if windowEnd != "" {
		t, err := parseTime("incident_time_window_end", windowEnd)
		if err != nil {
			return err
		}
		in.TimeWindow.End = t
	}

	// window defaults follow flag values only, a window missing from the
	// input file is left for validation to report
	startFromFlag := windowStart != ""
	if in.TimeWindow.Start.IsZero() && date != "" {
		in.TimeWindow.Start = in.IncidentDate
		startFromFlag = true
	}
	if in.TimeWindow.End.IsZero() && startFromFlag {
		in.TimeWindow.End = in.TimeWindow.Start.Add(time.Hour)
	}
	return nil
}
