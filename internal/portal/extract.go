package portal

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var courseIDRe = regexp.MustCompile(`course_id="(\d+)"`)

// extractClasses pulls (id, name) pairs from the portal home page. Ids
// come from the course_id markers; names from the course_name element
// next to each marker, best effort. A page where goquery finds nothing
// still yields the ids from the regex pass.
func extractClasses(body string) []Class {
	var ids []string
	seen := map[string]bool{}
	for _, m := range courseIDRe.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	}
	if len(ids) == 0 {
		return nil
	}

	names := map[string]string{}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		doc.Find("[course_id]").Each(func(_ int, sel *goquery.Selection) {
			id := sel.AttrOr("course_id", "")
			if id == "" || names[id] != "" {
				return
			}
			name := strings.TrimSpace(sel.Find(".course_name").First().Text())
			if name == "" {
				name = strings.TrimSpace(sel.Parent().Find(".course_name").First().Text())
			}
			if name != "" {
				names[id] = name
			}
		})
	}

	classes := make([]Class, 0, len(ids))
	for _, id := range ids {
		classes = append(classes, Class{ID: id, Name: names[id]})
	}
	return classes
}

// taskStrategy is one way of finding the check-in task id in the listing
// page body. Strategies are tried in order; when the portal markup
// changes, new ones get appended here instead of rewriting control flow.
type taskStrategy struct {
	name string
	re   *regexp.Regexp
}

func taskStrategies(classID string) []taskStrategy {
	quoted := regexp.QuoteMeta(classID)
	return []taskStrategy{
		{"punch_gps", regexp.MustCompile(`onclick="punch_gps\((\d+)\)"`)},
		{"punch_qr", regexp.MustCompile(`onclick="punch_qr\((\d+)\)"`)},
		{"task_link", regexp.MustCompile(`punchs/course/` + quoted + `/(\d+)`)},
	}
}

func redirectTaskRe(classID string) *regexp.Regexp {
	return regexp.MustCompile(`/course/` + regexp.QuoteMeta(classID) + `/(\d+)$`)
}

// extractTaskID resolves the task id either from the URL the listing page
// redirected to, or from the page body via the ordered strategy list. It
// returns the id and the name of the strategy that matched, or "", "".
func extractTaskID(classID, finalURLPath, body string) (taskID, strategy string) {
	if finalURLPath != "" {
		if m := redirectTaskRe(classID).FindStringSubmatch(finalURLPath); m != nil {
			return m[1], "redirect_url"
		}
	}
	for _, st := range taskStrategies(classID) {
		if m := st.re.FindStringSubmatch(body); m != nil {
			return m[1], st.name
		}
	}
	return "", ""
}
