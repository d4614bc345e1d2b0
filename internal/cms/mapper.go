package cms

import (
	"sort"
	"strings"
	"techacademy_backend/pkg/logger"
	"techacademy_backend/pkg/markdown"

	"go.uber.org/zap"
)

// Field is a logical attribute of a course, module or test entry.
type Field string

const (
	CourseTitle       Field = "course.title"
	CourseDescription Field = "course.description"
	CourseThumbnail   Field = "course.thumbnail"
	CourseModules     Field = "course.modules"
	CourseTest        Field = "course.test"
	ModuleTitle       Field = "module.title"
	ModuleDescription Field = "module.description"
	ModuleContent     Field = "module.content"
	ModuleTrainer     Field = "module.trainer"
	ModuleNumber      Field = "module.number"
	ModuleGroup       Field = "module.group"
	ModuleVideo       Field = "module.video"
	TestTitle         Field = "test.title"
	TestSections      Field = "test.sections"
	TestInstruction   Field = "test.instruction"
)

const (
	UntitledCourse  = "Untitled Course"
	UntitledModule  = "Untitled Module"
	UntitledSection = "Untitled Section"
	DefaultTestName = "Knowledge Check"
)

// DefaultFields lists, per logical field, the candidate keys in priority order.
var DefaultFields = map[Field][]string{
	CourseTitle:       {"title", "course_title", "name", "course_name", "course_details.title", "course_details.course_title"},
	CourseDescription: {"description", "course_description", "details"},
	CourseThumbnail:   {"course_thumbnail", "thumbnail"},
	CourseModules:     {"reference", "course_modules"},
	CourseTest:        {"reference_test"},
	ModuleTitle:       {"title", "module_title", "name"},
	ModuleDescription: {"description", "module_description"},
	ModuleContent:     {"content", "module_content"},
	ModuleTrainer:     {"trainer"},
	ModuleNumber:      {"module_number", "moduleNumber"},
	ModuleGroup:       {"course_module_group"},
	ModuleVideo:       {"course_video"},
	TestTitle:         {"title"},
	TestSections:      {"section"},
	TestInstruction:   {"instruction"},
}

// TaxonomyFieldCandidates are checked, in order, before the keyword scan.
var TaxonomyFieldCandidates = []string{"taxonomies", "categories", "taxonomy", "category", "tags", "tag", "terms", "term"}

var taxonomyKeywords = []string{"taxonom", "categor", "term", "tag"}

type Mapper struct {
	fields map[Field][]string
}

// NewMapper copies DefaultFields; a non-empty moduleRefKeys replaces the module
// reference candidates.
func NewMapper(moduleRefKeys []string) *Mapper {
	fields := make(map[Field][]string, len(DefaultFields))
	for k, v := range DefaultFields {
		fields[k] = append([]string(nil), v...)
	}
	if len(moduleRefKeys) > 0 {
		fields[CourseModules] = append([]string(nil), moduleRefKeys...)
	}
	return &Mapper{fields: fields}
}

// ReferenceKeys are the include[] values to request with a course.
func (m *Mapper) ReferenceKeys() []string {
	return m.fields[CourseModules]
}

type TermRef struct {
	UID  string `json:"uid"`
	Name string `json:"name,omitempty"`
}

// swagger:model Course
type Course struct {
	UID         string    `json:"uid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Thumbnail   any       `json:"course_thumbnail"`
	Taxonomy    []TermRef `json:"taxonomy"`
	Modules     []Module  `json:"course_modules"`
	TestUID     string    `json:"test_uid,omitempty"`
	UpdatedAt   string    `json:"updated_at,omitempty"`
}

func (c *Course) TaxonomyUIDs() []string {
	uids := make([]string, 0, len(c.Taxonomy))
	for _, t := range c.Taxonomy {
		uids = append(uids, t.UID)
	}
	return uids
}

func (c *Course) ModuleCount() int {
	return len(c.Modules)
}

// swagger:model Module
type Module struct {
	UID          string  `json:"uid"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Content      any     `json:"content"`
	ContentHTML  string  `json:"content_html,omitempty"`
	Trainer      any     `json:"trainer"`
	ModuleNumber float64 `json:"module_number"`
	Group        any     `json:"course_module_group"`
	Video        any     `json:"course_video"`
}

func (m *Mapper) MapCourse(e Entry) Course {
	c := Course{
		UID:         e.UID(),
		Title:       e.FirstString(m.fields[CourseTitle]),
		Description: e.FirstString(m.fields[CourseDescription]),
		Taxonomy:    ExtractTaxonomyTerms(e),
		Modules:     []Module{},
		UpdatedAt:   e.String("updated_at"),
	}
	if c.Title == "" {
		c.Title = UntitledCourse
	}
	if thumb, ok := e.FirstValue(m.fields[CourseThumbnail]); ok {
		c.Thumbnail = thumb
	}
	if refs, _, ok := e.FirstList(m.fields[CourseModules]); ok {
		c.Modules = m.MapModules(refs)
	}
	if test, ok := m.testReference(e); ok {
		c.TestUID = test
	}
	return c
}

// MapModules maps and orders modules by module number; ties keep CMS order.
func (m *Mapper) MapModules(entries []Entry) []Module {
	modules := make([]Module, 0, len(entries))
	for _, e := range entries {
		modules = append(modules, m.MapModule(e))
	}
	SortModules(modules)
	return modules
}

func (m *Mapper) MapModule(e Entry) Module {
	mod := Module{
		UID:         e.UID(),
		Title:       e.FirstString(m.fields[ModuleTitle]),
		Description: e.FirstString(m.fields[ModuleDescription]),
		Content:     "",
		Trainer:     map[string]any{},
	}
	if mod.Title == "" {
		mod.Title = UntitledModule
	}
	if content, ok := e.FirstValue(m.fields[ModuleContent]); ok {
		mod.Content = content
		if text, isText := content.(string); isText {
			html, err := markdown.ToHTML(text)
			if err != nil {
				logger.Log.Warn("Failed to render module content", zap.String("module", mod.UID), zap.Error(err))
			} else {
				mod.ContentHTML = html
			}
		}
	}
	if trainer, ok := e.FirstValue(m.fields[ModuleTrainer]); ok {
		mod.Trainer = trainer
	}
	if n, ok := e.FirstNumber(m.fields[ModuleNumber]); ok {
		mod.ModuleNumber = n
	}
	if group, ok := e.FirstValue(m.fields[ModuleGroup]); ok {
		mod.Group = group
	}
	if video, ok := e.FirstValue(m.fields[ModuleVideo]); ok {
		mod.Video = video
	}
	return mod
}

func SortModules(modules []Module) {
	sort.SliceStable(modules, func(i, j int) bool {
		return modules[i].ModuleNumber < modules[j].ModuleNumber
	})
}

func (m *Mapper) testReference(e Entry) (string, bool) {
	for _, key := range m.fields[CourseTest] {
		ref, ok := e.Object(key)
		if !ok {
			continue
		}
		if uid := ref.UID(); uid != "" {
			return uid, true
		}
	}
	return "", false
}

// DetectTaxonomyField finds the key holding taxonomy data: a known candidate
// first, then any key mentioning a taxonomy keyword. Keys are scanned sorted so
// the result is deterministic.
func DetectTaxonomyField(e Entry) (string, bool) {
	for _, key := range TaxonomyFieldCandidates {
		if isListOrObject(e[key]) {
			return key, true
		}
	}

	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		lower := strings.ToLower(key)
		for _, kw := range taxonomyKeywords {
			if strings.Contains(lower, kw) && isListOrObject(e[key]) {
				return key, true
			}
		}
	}
	return "", false
}

// ExtractTaxonomyTerms normalizes single-term objects, term arrays and uid
// strings into a uniform list.
func ExtractTaxonomyTerms(e Entry) []TermRef {
	terms := []TermRef{}
	key, ok := DetectTaxonomyField(e)
	if !ok {
		return terms
	}

	switch v := e[key].(type) {
	case []any:
		for _, item := range v {
			if ref, ok := toTermRef(item); ok {
				terms = append(terms, ref)
			}
		}
	default:
		if ref, ok := toTermRef(v); ok {
			terms = append(terms, ref)
		}
	}
	return terms
}

func toTermRef(v any) (TermRef, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		return TermRef{UID: s}, s != ""
	}
	obj, ok := asObject(v)
	if !ok {
		return TermRef{}, false
	}
	term := Entry(obj)
	ref := TermRef{
		UID:  term.FirstString([]string{"uid", "id", "term_uid"}),
		Name: term.FirstString([]string{"name", "title", "label"}),
	}
	return ref, ref.UID != ""
}

func isListOrObject(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return true
	}
	return false
}

// MapKnowledgeCheck maps a course_test entry. The instruction is kept only when
// its instruction_knowledge_check field has content.
func (m *Mapper) MapKnowledgeCheck(e Entry) *KnowledgeCheckEntry {
	test := &KnowledgeCheckEntry{
		UID:   e.UID(),
		Title: e.FirstString(m.fields[TestTitle]),
	}
	if test.Title == "" {
		test.Title = DefaultTestName
	}

	for _, key := range m.fields[TestInstruction] {
		inst, ok := e.Object(key)
		if !ok || inst.UID() == "" {
			continue
		}
		content, ok := inst.Lookup("instruction_knowledge_check")
		if !ok || isEmpty(content) {
			continue
		}
		title := inst.String("title")
		if title == "" {
			title = "Instructions"
		}
		test.Instruction = &InstructionEntry{UID: inst.UID(), Title: title, Content: content}
		break
	}

	sections, _, _ := e.FirstList(m.fields[TestSections])
	for _, s := range sections {
		section := SectionEntry{Title: s.String("section_title")}
		if section.Title == "" {
			section.Title = UntitledSection
		}
		questions, _, _ := s.FirstList([]string{"question"})
		for _, q := range questions {
			options := map[string]string{}
			for _, key := range optionKeys {
				options[key] = ""
			}
			if ov, ok := q.Object("option_value"); ok {
				for k, v := range ov {
					if text, ok := v.(string); ok {
						options[k] = text
					}
				}
			}
			section.Questions = append(section.Questions, QuestionEntry{
				Question:      q.String("question_to_be_asked"),
				OptionValue:   options,
				CorrectAnswer: q.String("please_select_the_answer"),
			})
		}
		coding, _, _ := s.FirstList([]string{"question_coding"})
		for _, q := range coding {
			section.CodingQuestions = append(section.CodingQuestions, CodingEntry{
				Question: q.String("coding_question_to_be_asked"),
			})
		}
		test.Sections = append(test.Sections, section)
	}
	return test
}

var optionKeys = []string{"option_1", "option_2", "option_3", "option_4"}

type KnowledgeCheckEntry struct {
	UID         string
	Title       string
	Instruction *InstructionEntry
	Sections    []SectionEntry
}

type InstructionEntry struct {
	UID     string
	Title   string
	Content any
}

type SectionEntry struct {
	Title           string
	Questions       []QuestionEntry
	CodingQuestions []CodingEntry
}

type QuestionEntry struct {
	Question      string
	OptionValue   map[string]string
	CorrectAnswer string
}

type CodingEntry struct {
	Question string
}
