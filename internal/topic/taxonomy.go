package topic

import (
	"regexp"
	"strings"

	"recordnorm/pkg/records"
)

// GenericTopic is used when nothing else matches.
const GenericTopic = "General Content"

type rule struct {
	topic string
	terms []*regexp.Regexp
}

func (r rule) match(text string) bool {
	for _, re := range r.terms {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func newRule(topic string, terms ...string) rule {
	return rule{topic: topic, terms: wordPatterns(terms)}
}

// wordPatterns compiles whole-word, case-insensitive matchers for terms.
func wordPatterns(terms []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(terms))
	for _, t := range terms {
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(t)+`\b`))
	}
	return out
}

// lawRules are specific physical laws, checked before anything broader.
var lawRules = []rule{
	newRule("Newton's Laws of Motion", "newton's first law", "newton's second law", "newton's third law", "newton's laws", "laws of motion", "f = ma", "f=ma"),
	newRule("Thermodynamics", "thermodynamics", "entropy", "second law of thermodynamics"),
	newRule("Ohm's Law", "ohm's law", "ohms law"),
	newRule("Conservation of Energy", "conservation of energy", "kinetic energy", "potential energy"),
	newRule("Universal Gravitation", "universal gravitation", "law of gravitation", "gravitational constant"),
	newRule("Hooke's Law", "hooke's law", "spring constant"),
	newRule("Coulomb's Law", "coulomb's law", "electrostatic force"),
}

var (
	physicsRule = newRule("Physics",
		"physics", "force", "velocity", "acceleration", "momentum", "energy", "mass",
		"gravity", "friction", "quantum", "relativity", "inertia", "torque")

	// softwareContext suppresses the general physics rule, e.g. "force push"
	// or "mass update" in an engineering log.
	softwareContext = wordPatterns([]string{
		"code", "function", "software", "programming", "api", "database", "variable",
		"compile", "compiler", "git", "deploy", "server", "commit", "repository", "bug",
	})

	biologyRule = newRule("Biology",
		"biology", "cell", "cells", "dna", "rna", "protein", "photosynthesis", "evolution",
		"organism", "gene", "genes", "enzyme", "mitosis", "ecosystem")

	computingRule = newRule("Computer Science",
		"computer science", "algorithm", "algorithms", "programming", "software", "database",
		"data structure", "compiler", "code", "function", "api", "network", "operating system")
)

var sourceTopics = map[records.SourceType]string{
	records.SourceDocument: "Document Analysis",
	records.SourceAudio:    "Audio Transcript",
	records.SourceImage:    "Image Analysis",
	records.SourceAPI:      "API Data",
	records.SourceChat:     "Conversation",
	records.SourceTabular:  "Tabular Data",
	records.SourceLog:      "System Logs",
	records.SourceText:     "General Text",
}

// Detect picks a canonical topic for content. Specific laws win over general
// physics, general physics is skipped in a software context, then biology and
// computer science are tried, then the source type decides.
func Detect(content string, src records.SourceType) string {
	text := strings.TrimSpace(content)
	if text != "" {
		for _, r := range lawRules {
			if r.match(text) {
				return r.topic
			}
		}
		if physicsRule.match(text) && !anyMatch(softwareContext, text) {
			return physicsRule.topic
		}
		if biologyRule.match(text) {
			return biologyRule.topic
		}
		if computingRule.match(text) {
			return computingRule.topic
		}
	}
	if t, ok := sourceTopics[src]; ok {
		return t
	}
	return GenericTopic
}

func anyMatch(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
