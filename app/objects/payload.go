package objects

import "time"

type Payload struct {
	ID             string          `json:"id" bson:"id"`
	PayloadID      string          `json:"payload_id" bson:"payload_id"`
	Bucket         string          `json:"bucket" bson:"bucket"`
	CalledAeTitle  string          `json:"called_ae_title" bson:"called_ae_title"`
	CallingAeTitle string          `json:"calling_ae_title" bson:"calling_ae_title"`
	Timestamp      time.Time       `json:"timestamp" bson:"timestamp"`
	FileCount      int             `json:"file_count" bson:"file_count"`
	PatientDetails *PatientDetails `json:"patient_details,omitempty" bson:"patient_details,omitempty"`
}

type PatientDetails struct {
	PatientID         string     `json:"patient_id" bson:"patient_id"`
	PatientName       string     `json:"patient_name" bson:"patient_name"`
	PatientSex        string     `json:"patient_sex" bson:"patient_sex"`
	PatientDob        *time.Time `json:"patient_dob,omitempty" bson:"patient_dob,omitempty"`
	PatientAge        string     `json:"patient_age" bson:"patient_age"`
	PatientHospitalID string     `json:"patient_hospital_id" bson:"patient_hospital_id"`
}
