package model

type Doctor struct {
	Base
	Name   string `db:"name" json:"name"`
	Color  string `db:"color" json:"color"`
	Active bool   `db:"active" json:"active"`
}

type CreateDoctorRequest struct {
	Name  string `json:"name" binding:"required,max=100"`
	Color string `json:"color" binding:"omitempty,alpha"`
}

// DefaultDoctorNames seed a fresh store.
var DefaultDoctorNames = []struct{ Name, Color string }{
	{"Dr. Sarah", "blue"},
	{"Dr. Mohammed", "green"},
	{"Dr. Ali", "purple"},
}

type SetDoctorActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}
