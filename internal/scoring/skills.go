package scoring

// Skill is one of the eight scored competency dimensions.
type Skill string

const (
	Communication      Skill = "Communication"
	Collaboration      Skill = "Collaboration"
	Content            Skill = "Content"
	CriticalThinking   Skill = "Critical Thinking"
	CreativeInnovation Skill = "Creative Innovation"
	Confidence         Skill = "Confidence"
	Literacy           Skill = "Literacy"
	Math               Skill = "Math"
)

var skillOrder = [...]Skill{
	Communication,
	Collaboration,
	Content,
	CriticalThinking,
	CreativeInnovation,
	Confidence,
	Literacy,
	Math,
}

// SkillCount is the number of scored skills in every vector.
const SkillCount = len(skillOrder)

// Skills returns the skills in declaration order.
func Skills() []Skill {
	out := make([]Skill, SkillCount)
	copy(out, skillOrder[:])
	return out
}

// Index returns the declaration position of s, or -1 for an unknown skill.
func (s Skill) Index() int {
	for i, k := range skillOrder {
		if k == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the eight skills.
func (s Skill) Valid() bool { return s.Index() >= 0 }

// PreferenceField is an unscored descriptive dimension captured alongside skills.
type PreferenceField string

const (
	Engagement PreferenceField = "Engagement"
	Modality   PreferenceField = "Modality"
	Social     PreferenceField = "Social"
	Interests  PreferenceField = "Interests"
)

var preferenceOrder = [...]PreferenceField{Engagement, Modality, Social, Interests}

// PreferenceFields returns the preference fields in declaration order.
func PreferenceFields() []PreferenceField {
	out := make([]PreferenceField, len(preferenceOrder))
	copy(out, preferenceOrder[:])
	return out
}

// Valid reports whether p is one of the four preference fields.
func (p PreferenceField) Valid() bool {
	for _, f := range preferenceOrder {
		if f == p {
			return true
		}
	}
	return false
}

const (
	questionsPerSkill = 3
	lastSkillQuestion = SkillCount * questionsPerSkill // 24
	firstPrefQuestion = lastSkillQuestion + 1          // 25
	lastPrefQuestion  = lastSkillQuestion + len(preferenceOrder)
)

// SkillForQuestion maps a core question id (1-24) to its skill.
// Preference ids, extended ids and invalid ids report false.
func SkillForQuestion(id int) (Skill, bool) {
	if id < 1 || id > lastSkillQuestion {
		return "", false
	}
	return skillOrder[(id-1)/questionsPerSkill], true
}

// PreferenceForQuestion maps question ids 25-28 to their preference field.
func PreferenceForQuestion(id int) (PreferenceField, bool) {
	if id < firstPrefQuestion || id > lastPrefQuestion {
		return "", false
	}
	return preferenceOrder[id-firstPrefQuestion], true
}

// QuizType tags which quiz produced an assessment.
type QuizType string

const (
	QuizParentHome       QuizType = "parent_home"
	QuizTeacherClassroom QuizType = "teacher_classroom"
	QuizGeneral          QuizType = "general"
)

// Valid reports whether q is a known quiz type. The empty value is treated as general.
func (q QuizType) Valid() bool {
	switch q {
	case QuizParentHome, QuizTeacherClassroom, QuizGeneral, "":
		return true
	}
	return false
}

// RespondentType identifies who filled in an assessment.
type RespondentType string

const (
	RespondentParent       RespondentType = "parent"
	RespondentTeacher      RespondentType = "teacher"
	RespondentProfessional RespondentType = "professional"
	RespondentOther        RespondentType = "other"
)

// Valid reports whether r is a known respondent type or empty.
func (r RespondentType) Valid() bool {
	switch r {
	case RespondentParent, RespondentTeacher, RespondentProfessional, RespondentOther, "":
		return true
	}
	return false
}

// IsProfessional reports whether the respondent is a teacher or other professional.
func (r RespondentType) IsProfessional() bool {
	return r == RespondentTeacher || r == RespondentProfessional
}

// AgeGroup is the age band a quiz was configured for, e.g. "5-6".
type AgeGroup string
