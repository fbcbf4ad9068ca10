package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"
	"github.com/shibukawa/aggcheck/rules"
	"github.com/shibukawa/aggcheck/runner"
)

// WriteJUnit writes a JUnit XML report: one testsuite per story, one testcase per rule.
// Failed rules carry <failure>, errored ones <error>, skipped and warned ones <skipped>.
func WriteJUnit(w io.Writer, s *runner.Summary) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", "aggcheck")
	root.CreateAttr("tests", strconv.Itoa(s.Total))
	root.CreateAttr("failures", strconv.Itoa(s.Failed))
	root.CreateAttr("errors", strconv.Itoa(s.Errored))
	root.CreateAttr("time", seconds(s.Duration.Seconds()))

	for _, group := range groupByStory(s.Results) {
		suite := root.CreateElement("testsuite")
		suite.CreateAttr("name", string(group.story))

		var failures, errs, skipped int
		var elapsed float64

		for _, r := range group.results {
			elapsed += r.Duration.Seconds()

			tc := suite.CreateElement("testcase")
			tc.CreateAttr("name", fmt.Sprintf("%02d %s", r.Rule.ID, r.Rule.Name))
			tc.CreateAttr("classname", string(r.Rule.Story))
			tc.CreateAttr("time", seconds(r.Duration.Seconds()))

			props := tc.CreateElement("properties")
			addProperty(props, "severity", string(r.Rule.Severity))
			addProperty(props, "violations", strconv.FormatInt(r.Violations, 10))

			if r.Rule.Description != "" {
				addProperty(props, "description", r.Rule.Description)
			}

			switch r.Status {
			case rules.StatusFailed:
				failures++
				failure := tc.CreateElement("failure")
				failure.CreateAttr("message", headline(r.Message))
				failure.CreateAttr("type", string(r.Rule.Severity))
				failure.SetText(r.Message)
			case rules.StatusErrored:
				errs++
				e := tc.CreateElement("error")
				e.CreateAttr("message", headline(r.Message))
				e.SetText(r.Message)
			case rules.StatusSkipped, rules.StatusWarned:
				skipped++
				skip := tc.CreateElement("skipped")
				skip.CreateAttr("message", string(r.Status)+": "+headline(r.Message))
			}

			if r.SQL != "" {
				tc.CreateElement("system-out").SetText(r.SQL)
			}
		}

		suite.CreateAttr("tests", strconv.Itoa(len(group.results)))
		suite.CreateAttr("failures", strconv.Itoa(failures))
		suite.CreateAttr("errors", strconv.Itoa(errs))
		suite.CreateAttr("skipped", strconv.Itoa(skipped))
		suite.CreateAttr("time", seconds(elapsed))
	}

	doc.Indent(2)

	_, err := doc.WriteTo(w)

	return err
}

func addProperty(props *etree.Element, name, value string) {
	prop := props.CreateElement("property")
	prop.CreateAttr("name", name)
	prop.CreateAttr("value", value)
}

type storyGroup struct {
	story   rules.Story
	results []runner.RuleResult
}

// groupByStory groups results by story in order of first appearance.
func groupByStory(results []runner.RuleResult) []storyGroup {
	var groups []storyGroup

	index := make(map[rules.Story]int)

	for _, r := range results {
		i, ok := index[r.Rule.Story]
		if !ok {
			i = len(groups)
			index[r.Rule.Story] = i
			groups = append(groups, storyGroup{story: r.Rule.Story})
		}

		groups[i].results = append(groups[i].results, r)
	}

	return groups
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
