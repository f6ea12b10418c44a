package models

// BirthDetails carries the user-provided inputs for chart generation.
type BirthDetails struct {
	Name        string `json:"name" binding:"required"`
	Gender      string `json:"gender" binding:"required"`
	DateOfBirth string `json:"dateOfBirth" binding:"required"`
	TimeOfBirth string `json:"timeOfBirth" binding:"required"`
	BirthPlace  string `json:"birthPlace" binding:"required"`
}

type LuckyElements struct {
	Number   string `json:"number"`
	Color    string `json:"color"`
	Day      string `json:"day"`
	Gemstone string `json:"gemstone"`
}

// KundaliChart is the structured birth-chart analysis returned to the user.
type KundaliChart struct {
	SunSign       string        `json:"sunSign"`
	MoonSign      string        `json:"moonSign"`
	Ascendant     string        `json:"ascendant"`
	Nakshatra     string        `json:"nakshatra"`
	Rashi         string        `json:"rashi"`
	Personality   string        `json:"personality"`
	Strengths     []string      `json:"strengths"`
	Challenges    []string      `json:"challenges"`
	LuckyElements LuckyElements `json:"luckyElements"`
}
