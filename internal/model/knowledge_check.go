package model

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionNormal QuestionType = "normal"
	QuestionCoding QuestionType = "coding"
)

const (
	PassThreshold       = 80
	ManualReviewMessage = "N/A - Coding question requires manual review"
)

// KnowledgeCheck 课程测验，由 CMS course_test 条目映射而来
// swagger:model KnowledgeCheck
type KnowledgeCheck struct {
	UID         string                  `json:"uid"`
	Title       string                  `json:"title"`
	Instruction *TestInstruction        `json:"instruction"`
	Sections    []KnowledgeCheckSection `json:"sections"`
}

type TestInstruction struct {
	UID     string `json:"uid"`
	Title   string `json:"title"`
	Content any    `json:"instruction_knowledge_check"`
}

type KnowledgeCheckSection struct {
	Title           string           `json:"section_title"`
	Questions       []ChoiceQuestion `json:"questions"`
	CodingQuestions []CodingQuestion `json:"coding_questions"`
}

type ChoiceQuestion struct {
	Question      string            `json:"question_to_be_asked"`
	OptionValue   map[string]string `json:"option_value"`
	CorrectAnswer string            `json:"correct_answer"`
}

// OptionText 将选项 key 解析为展示文本，找不到时返回 key 本身
func (q *ChoiceQuestion) OptionText(key string) string {
	if text, ok := q.OptionValue[key]; ok && text != "" {
		return text
	}
	return key
}

type CodingQuestion struct {
	Question string `json:"coding_question_to_be_asked"`
}

// SubmittedAnswer 学员提交的单题答案
type SubmittedAnswer struct {
	SectionIndex  int          `json:"sectionIndex"`
	QuestionIndex int          `json:"questionIndex"`
	Answer        string       `json:"answer"`
	QuestionType  QuestionType `json:"questionType"`
}

type QuestionResult struct {
	SectionIndex      int          `json:"sectionIndex"`
	QuestionIndex     int          `json:"questionIndex"`
	QuestionType      QuestionType `json:"questionType"`
	IsCorrect         bool         `json:"isCorrect"`
	RequiresReview    bool         `json:"requiresManualReview,omitempty"`
	UserAnswer        string       `json:"userAnswer"`
	UserAnswerText    string       `json:"userAnswerText"`
	CorrectAnswer     string       `json:"correctAnswer"`
	CorrectAnswerText string       `json:"correctAnswerText"`
	Question          string       `json:"question"`
}

type ScoreSummary struct {
	Correct    int  `json:"correct"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	Passed     bool `json:"passed"`
}

// swagger:model GradeResult
type GradeResult struct {
	Score   ScoreSummary     `json:"score"`
	Results []QuestionResult `json:"results"`
	Message string           `json:"message"`
}

// KnowledgeCheckSubmission 评分记录，编程题答案保存在 Results 中供人工复核
type KnowledgeCheckSubmission struct {
	BaseModel
	UserID      string                              `gorm:"size:64;index;not null" json:"userId"`
	CourseUID   string                              `gorm:"size:64;index;not null" json:"courseUid"`
	TestUID     string                              `gorm:"size:64;not null" json:"testUid"`
	Correct     int                                 `json:"correct"`
	Total       int                                 `json:"total"`
	Percentage  int                                 `json:"percentage"`
	Passed      bool                                `json:"passed"`
	NeedsReview bool                                `json:"needsReview"`
	Results     datatypes.JSONSlice[QuestionResult] `json:"results"`
	ArchiveURL  string                              `gorm:"size:512" json:"archiveUrl,omitempty"`
	SubmittedAt time.Time                           `json:"submittedAt"`
}

func (KnowledgeCheckSubmission) TableName() string {
	return "knowledge_check_submissions"
}
