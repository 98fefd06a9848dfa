package classifier

// Keyword vocabularies for the three clinical table categories. The three
// sets are disjoint; classification counts hits per vocabulary and the
// category with the strictly highest count wins.

var labKeywords = []string{
	"glucose", "hemoglobin", "hematocrit", "platelet", "wbc", "rbc",
	"creatinine", "sodium", "potassium", "chloride", "calcium", "albumin",
	"bilirubin", "cholesterol", "triglyceride", "hdl", "ldl", "a1c", "tsh",
	"result", "reference", "range", "specimen", "lab", "laboratory", "assay",
	"panel", "mg/dl", "mmol/l", "units",
}

var medicationKeywords = []string{
	"medication", "drug", "dose", "dosage", "frequency", "route", "refill",
	"prescription", "prescribed", "tablet", "capsule", "oral", "injection",
	"daily", "twice", "bid", "tid", "prn", "mg", "mcg", "ml",
	"metformin", "lisinopril", "atorvastatin", "amlodipine", "omeprazole",
	"aspirin", "ibuprofen", "insulin", "warfarin", "levothyroxine",
}

var vitalsKeywords = []string{
	"blood pressure", "systolic", "diastolic", "heart rate", "pulse",
	"respiratory rate", "respiration", "temperature", "oxygen", "spo2",
	"saturation", "bmi", "height", "weight", "bpm", "vitals", "vital signs",
	"mmhg",
}

// entityVocabulary is the fixed list used by entity extraction. Entries are
// normalized display forms; matching is case-insensitive on the normalized
// lowercase form.
var entityVocabulary = []string{
	// Medications
	"Metformin", "Lisinopril", "Atorvastatin", "Amlodipine", "Omeprazole",
	"Aspirin", "Ibuprofen", "Insulin", "Warfarin", "Levothyroxine",
	"Amoxicillin", "Prednisone", "Gabapentin", "Hydrochlorothiazide",
	// Lab analytes
	"Glucose", "Hemoglobin", "Hematocrit", "Creatinine", "Sodium",
	"Potassium", "Cholesterol", "Triglycerides", "Albumin", "Bilirubin",
	"TSH", "A1C",
	// Vitals
	"Blood Pressure", "Heart Rate", "Respiratory Rate", "Temperature",
	"Oxygen Saturation", "BMI",
}

// generalMedicalKeywords backs the cheap domain-relevance pre-filter. A
// table whose content matches none of these (and none of the category
// vocabularies) is not persisted.
var generalMedicalKeywords = []string{
	"patient", "diagnosis", "clinical", "medical", "physician", "hospital",
	"treatment", "symptom", "allergy", "immunization", "procedure", "icd",
}
