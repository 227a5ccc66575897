package rrd

import (
	"fmt"

	"github.com/iamNilotpal/rrdpool/pkg/errors"
)

// Source describes one datasource recorded in an archive file.
type Source struct {
	// Identifier of the datasource, unique within one file.
	Name string

	// Maximum number of seconds between two updates before the
	// datasource value is considered unknown.
	Heartbeat int64
}

// Archive describes one consolidated archive: Steps primary data points are
// consolidated into one archived point, Rows points are retained.
type Archive struct {
	Steps int
	Rows  int
}

// Def is a structured definition of a round robin archive file. It carries
// everything needed to create the file from scratch.
type Def struct {
	// Target path of the file to create.
	Path string

	// Base interval in seconds between two updates.
	Step int64

	Sources  []Source
	Archives []Archive
}

// Validate checks that the definition describes a creatable file.
func (d *Def) Validate() error {
	if d.Path == "" {
		return errors.NewRequiredFieldError("path")
	}

	if d.Step <= 0 {
		return errors.NewValidationError(
			nil, errors.ErrValidationInvalidData,
			fmt.Sprintf("step must be positive, got %d", d.Step),
		).WithField("step").WithProvided(d.Step)
	}

	if len(d.Sources) == 0 {
		return errors.NewRequiredFieldError("sources").WithExpected(1).WithProvided(0)
	}

	if len(d.Archives) == 0 {
		return errors.NewRequiredFieldError("archives").WithExpected(1).WithProvided(0)
	}

	seen := make(map[string]struct{}, len(d.Sources))
	for _, src := range d.Sources {
		if src.Name == "" {
			return errors.NewRequiredFieldError("source name")
		}
		if _, dup := seen[src.Name]; dup {
			return errors.NewValidationError(
				nil, errors.ErrValidationInvalidData,
				fmt.Sprintf("duplicate source name %q", src.Name),
			).WithField("sources").WithProvided(src.Name)
		}
		seen[src.Name] = struct{}{}

		if src.Heartbeat <= 0 {
			return errors.NewValidationError(
				nil, errors.ErrValidationInvalidData,
				fmt.Sprintf("heartbeat for source %q must be positive, got %d", src.Name, src.Heartbeat),
			).WithField("heartbeat").WithProvided(src.Heartbeat)
		}
	}

	for i, arc := range d.Archives {
		if arc.Steps <= 0 || arc.Rows <= 0 {
			return errors.NewValidationError(
				nil, errors.ErrValidationInvalidData,
				fmt.Sprintf("archive %d must have positive steps and rows, got %d/%d", i, arc.Steps, arc.Rows),
			).WithField("archives")
		}
	}

	return nil
}
