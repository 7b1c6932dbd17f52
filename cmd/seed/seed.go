package main

import (
	"context"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"medibook/internal/logging"
	"medibook/internal/models"
	"medibook/internal/repository"
)

// doctorSeed is one entry of the seed file. Passwords are given in clear
// text and hashed before they are stored.
type doctorSeed struct {
	Number       int     `yaml:"id" validate:"required,gt=0"`
	Name         string  `yaml:"name" validate:"required"`
	Username     string  `yaml:"username" validate:"required,min=3"`
	Password     string  `yaml:"password" validate:"required,min=6"`
	Speciality   string  `yaml:"speciality" validate:"required"`
	Fees         float64 `yaml:"fees" validate:"gte=0"`
	Availability string  `yaml:"availability" validate:"required"`
	Rating       float64 `yaml:"rating" validate:"gte=0,lte=5"`
	Image        string  `yaml:"image"`
}

type seedFile struct {
	Doctors []doctorSeed `yaml:"doctors"`
}

var validate = validator.New()

func parseSeed(r io.Reader) ([]doctorSeed, error) {
	var file seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	seen := map[string]bool{}
	for i, d := range file.Doctors {
		if err := validate.Struct(d); err != nil {
			return nil, fmt.Errorf("doctor %d (%s): %w", i, d.Username, err)
		}
		if seen[d.Username] {
			return nil, fmt.Errorf("doctor %d: duplicate username %q", i, d.Username)
		}
		seen[d.Username] = true
	}
	return file.Doctors, nil
}

func seedDoctors(ctx context.Context, repo repository.DoctorRepository, seeds []doctorSeed, logger *logging.Logger) error {
	for _, s := range seeds {
		hash, err := models.HashPassword(s.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", s.Username, err)
		}
		doctor := models.Doctor{
			Number:       s.Number,
			Name:         s.Name,
			Username:     s.Username,
			Speciality:   s.Speciality,
			Fees:         s.Fees,
			Availability: s.Availability,
			Rating:       s.Rating,
			Image:        s.Image,
			Password:     hash,
		}
		if err := repo.Upsert(ctx, &doctor); err != nil {
			return fmt.Errorf("upsert %s: %w", s.Username, err)
		}
		logger.Info("doctor seeded", "username", doctor.Username, "doctor_id", doctor.ID)
	}
	return nil
}
