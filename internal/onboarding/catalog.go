package onboarding

// Subjects は講師が選択できる担当科目。
var Subjects = []string{
	"English Conversation",
	"Grammar",
	"TOEIC",
	"TOEFL",
	"IELTS",
	"Business English",
	"Kids English",
	"Elementary",
	"Middle School",
	"High School",
	"SAT",
	"Math",
	"Science",
}

// Locations は勤務地・所在地として選択できる地域。
var Locations = []string{
	"Seoul - Gangnam",
	"Seoul - Gangbuk",
	"Seoul - Mapo",
	"Seoul - Songpa",
	"Incheon",
	"Busan",
	"Daegu",
	"Daejeon",
	"Gwangju",
	"Other",
}

// Nationalities は講師が選択できる国籍。
var Nationalities = []string{
	"American",
	"Canadian",
	"British",
	"Australian",
	"New Zealand",
	"South African",
	"Irish",
	"Other Native English",
	"Other",
}

// MaxExperienceYears は入力できる経験年数の上限。
const MaxExperienceYears = 50

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
