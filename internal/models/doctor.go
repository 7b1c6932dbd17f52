package models

// Doctor is a bookable practitioner. Doctors are created out-of-band by the
// seed command and are read-only for the API.
type Doctor struct {
	ID           ID      `bson:"_id,omitempty" json:"_id"`
	Number       int     `bson:"id" json:"id"`
	Name         string  `bson:"name" json:"name"`
	Username     string  `bson:"username" json:"username"`
	Speciality   string  `bson:"speciality" json:"speciality"`
	Fees         float64 `bson:"fees" json:"fees"`
	Availability string  `bson:"availability" json:"availability"`
	Rating       float64 `bson:"rating" json:"rating"`
	Image        string  `bson:"image" json:"image"`
	Password     string  `bson:"password,omitempty" json:"-"` // Never send password in JSON
}

// DoctorSummary is the doctor data embedded into listed appointments.
type DoctorSummary struct {
	ID         ID     `bson:"_id,omitempty" json:"_id"`
	Name       string `bson:"name" json:"name"`
	Speciality string `bson:"speciality" json:"speciality"`
}

// Summary returns the denormalized view used by appointment listings.
func (d *Doctor) Summary() *DoctorSummary {
	return &DoctorSummary{ID: d.ID, Name: d.Name, Speciality: d.Speciality}
}

// CheckPassword compares a password with the doctor's hashed password
func (d *Doctor) CheckPassword(password string) bool {
	return checkPassword(d.Password, password)
}

// Identity is the session identity of a doctor account.
func (d *Doctor) Identity() Identity {
	return Identity{ID: d.ID, Username: d.Username, Role: RoleDoctor}
}
