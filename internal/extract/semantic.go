package extract

import (
	"regexp"
	"strings"
)

// Finding is one semantic vocabulary hit with its surrounding context.
type Finding struct {
	Term    string `json:"term"`
	Family  string `json:"family,omitempty"`
	Context string `json:"context,omitempty"`
}

// Semantics holds everything the vocabulary scan recovered from free text.
// It feeds the extraction cascade as a last-resort tier: fields still empty
// after the pattern rules draw from these findings.
type Semantics struct {
	Conditions   []Finding
	Procedures   []string
	Medications  []string
	CourseEvents []string
}

type vocabPattern struct {
	family string
	re     *regexp.Regexp
}

// Condition vocabularies, ordered by clinical specificity. The scan is
// closed-vocabulary only: no term outside these lists is ever synthesized.
var conditionVocab = []vocabPattern{
	{"hemorrhage", regexp.MustCompile(`(?i)\b(?:intracranial |subdural |epidural |subarachnoid |intraparenchymal |intraventricular )?(?:bleed(?:ing)?|hemorrhage|hematoma)\b|\b(?:ICH|SDH|EDH|SAH|IPH|IVH)\b`)},
	{"tumor", regexp.MustCompile(`(?i)\b(?:brain |spinal |pituitary )?(?:tumor|glioma|glioblastoma|GBM|meningioma|astrocytoma|oligodendroglioma|ependymoma|schwannoma|metastas[ie]s|mass lesion)\b`)},
	{"spine", regexp.MustCompile(`(?i)\b(?:spinal |cervical |lumbar |thoracic )?(?:stenosis|myelopathy|radiculopathy|spondylolisthesis|disc herniation|herniated disc)\b`)},
	{"vascular", regexp.MustCompile(`(?i)\b(?:aneurysm|AVM|arteriovenous malformation|cavernoma|cavernous malformation|dural fistula|moyamoya)\b`)},
	{"infection", regexp.MustCompile(`(?i)\b(?:abscess|meningitis|ventriculitis|osteomyelitis|empyema|wound infection)\b`)},
	{"csf", regexp.MustCompile(`(?i)\b(?:hydrocephalus|CSF leak|pseudomeningocele|shunt (?:malfunction|failure))\b`)},
	{"seizure", regexp.MustCompile(`(?i)\b(?:seizures?|epilepsy|status epilepticus)\b`)},
	{"stroke", regexp.MustCompile(`(?i)\b(?:strokes?|infarct(?:ion)?|ischemi[ac]|vessel occlusion)\b`)},
	{"trauma", regexp.MustCompile(`(?i)\b(?:TBI|traumatic brain injury|concussion|contusion|skull fracture)\b`)},
	{"chiari", regexp.MustCompile(`(?i)\bchiari(?:\s+malformation)?\b`)},
	{"medical", regexp.MustCompile(`(?i)\b(?:hypertension|HTN|diabetes(?:\s+mellitus)?|atrial fibrillation|pneumonia|myocardial infarction|COPD|renal failure|DVT|pulmonary embolism)\b|\bDM\b|\bMI\b`)},
}

var procedureVocab = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:mini)?cran(?:iotomy|iectomy|ioplasty)\b`),
	regexp.MustCompile(`(?i)\b(?:aneurysm\s+)?(?:clipping|coiling)\b`),
	regexp.MustCompile(`(?i)\b(?:hematoma\s+)?(?:evacuation|drainage)\b`),
	regexp.MustCompile(`(?i)\b(?:laminectomy|discectomy|fusion|decompression|corpectomy|foraminotomy)\b`),
	regexp.MustCompile(`(?i)\b(?:VP\s+)?shunt(?:\s+placement)?\b|\bEVD\b|\bventriculostomy\b`),
	regexp.MustCompile(`(?i)\b(?:biopsy|resection|excision|removal)\b`),
	regexp.MustCompile(`(?i)\b(?:embolization|angioplasty|thrombectomy)\b`),
}

var medNameVocab = []*regexp.Regexp{
	// Suffix-recognized name with dose, unit, optional frequency.
	regexp.MustCompile(`(?i)\b([A-Z][a-z]+(?:pam|zole|statin|cillin|mycin|olol|pril|sartan|amide|azone|azine|etine|idine|odone))\s+(\d+(?:\.\d+)?)\s*(mg|mcg|g|units?)(?:\s+(daily|BID|TID|QID|PRN|q\d+h|nightly))?`),
	// Common inpatient and neurosurgical medications by name.
	regexp.MustCompile(`(?i)\b(aspirin|acetaminophen|tylenol|morphine|oxycodone|hydromorphone|ibuprofen|gabapentin)\b[^\n]{0,40}`),
	regexp.MustCompile(`(?i)\b(levetiracetam|keppra|phenytoin|dilantin|lacosamide|valproate|carbamazepine)\b[^\n]{0,40}`),
	regexp.MustCompile(`(?i)\b(nimodipine|labetalol|nicardipine|dexamethasone|decadron|mannitol|heparin|enoxaparin|lovenox|warfarin|apixaban)\b[^\n]{0,40}`),
}

var courseMarkerRE = regexp.MustCompile(`(?i)[^.\n]{0,80}\b(?:underwent|had surgery|received|developed|was started on|improved|worsened|transferred to|tolerat(?:ed|ing)|remained stable|post-?op(?:erative)? day \d+|POD\s*\d+)\b[^.\n]{0,120}`)

const conditionContextWindow = 100

// AnalyzeSemantics scans free text with the closed vocabularies and returns
// deduplicated findings. Matching is case-insensitive; duplicates differing
// only by case collapse to the first occurrence.
func AnalyzeSemantics(text string) *Semantics {
	s := &Semantics{}
	if strings.TrimSpace(text) == "" {
		return s
	}

	seen := make(map[string]bool)
	for _, vp := range conditionVocab {
		for _, loc := range vp.re.FindAllStringIndex(text, -1) {
			term := text[loc[0]:loc[1]]
			key := strings.ToLower(term)
			if seen[key] {
				continue
			}
			seen[key] = true
			s.Conditions = append(s.Conditions, Finding{
				Term:    term,
				Family:  vp.family,
				Context: contextAround(text, loc[0], loc[1]),
			})
		}
	}

	seen = make(map[string]bool)
	for _, re := range procedureVocab {
		for _, m := range re.FindAllString(text, -1) {
			key := strings.ToLower(strings.TrimSpace(m))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			s.Procedures = append(s.Procedures, strings.TrimSpace(m))
		}
	}

	seen = make(map[string]bool)
	for _, re := range medNameVocab {
		for _, m := range re.FindAllString(text, -1) {
			med := strings.TrimSpace(m)
			key := strings.ToLower(med)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			s.Medications = append(s.Medications, med)
		}
	}

	seen = make(map[string]bool)
	for _, m := range courseMarkerRE.FindAllString(text, -1) {
		ev := strings.TrimSpace(m)
		key := strings.ToLower(ev)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		s.CourseEvents = append(s.CourseEvents, ev)
	}

	return s
}

// FirstCondition returns the highest-specificity condition term, or "".
func (s *Semantics) FirstCondition() string {
	if len(s.Conditions) == 0 {
		return ""
	}
	return s.Conditions[0].Term
}

// TopConditions joins up to n condition terms with ", ".
func (s *Semantics) TopConditions(n int) string {
	if n > len(s.Conditions) {
		n = len(s.Conditions)
	}
	terms := make([]string, 0, n)
	for _, c := range s.Conditions[:n] {
		terms = append(terms, c.Term)
	}
	return strings.Join(terms, ", ")
}

// CourseNarrative joins up to n course events into sentence form.
func (s *Semantics) CourseNarrative(n int) string {
	if n > len(s.CourseEvents) {
		n = len(s.CourseEvents)
	}
	if n == 0 {
		return ""
	}
	return strings.Join(s.CourseEvents[:n], ". ") + "."
}

func contextAround(text string, start, end int) string {
	lo := start - conditionContextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + conditionContextWindow
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}
