package progress

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

//go:embed curriculum.yaml
var curriculumYAML []byte

// Curriculum is the template every user's plan is generated from.
type Curriculum struct {
	Days     int               `yaml:"days"`
	Sessions []SessionTemplate `yaml:"sessions"`
	Topics   []string          `yaml:"topics"`
}

type SessionTemplate struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Duration string   `yaml:"duration"`
	Tasks    []string `yaml:"tasks"`
}

// DefaultCurriculum parses the embedded 15-day plan.
func DefaultCurriculum() (Curriculum, error) {
	return ParseCurriculum(curriculumYAML)
}

func ParseCurriculum(data []byte) (Curriculum, error) {
	var c Curriculum
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Curriculum{}, fmt.Errorf("parse curriculum: %w", err)
	}
	if c.Days <= 0 {
		return Curriculum{}, fmt.Errorf("parse curriculum: days must be positive")
	}
	if len(c.Sessions) == 0 {
		return Curriculum{}, fmt.Errorf("parse curriculum: no sessions")
	}
	for _, s := range c.Sessions {
		if s.ID == "" || len(s.Tasks) == 0 {
			return Curriculum{}, fmt.Errorf("parse curriculum: session %q needs an id and tasks", s.Title)
		}
	}
	return c, nil
}

func (c Curriculum) topic(day int) string {
	if len(c.Topics) == 0 {
		return fmt.Sprintf("Day %d", day)
	}
	return c.Topics[(day-1)%len(c.Topics)]
}

// Plan builds a fresh, incomplete plan starting on start.
func (c Curriculum) Plan(start time.Time) []Day {
	days := make([]Day, c.Days)
	for i := range days {
		n := i + 1
		topic := c.topic(n)
		fill := strings.NewReplacer("{topic}", topic)

		sessions := make([]Session, len(c.Sessions))
		for si, tpl := range c.Sessions {
			sid := fmt.Sprintf("d%d-%s", n, tpl.ID)
			tasks := make([]Task, len(tpl.Tasks))
			for ti, label := range tpl.Tasks {
				tasks[ti] = Task{ID: fmt.Sprintf("%s-t%d", sid, ti+1), Label: fill.Replace(label)}
			}
			sessions[si] = Session{
				ID:       sid,
				Title:    fill.Replace(tpl.Title),
				Duration: tpl.Duration,
				Tasks:    tasks,
			}
		}
		days[i] = Day{
			Number:   n,
			Date:     start.AddDate(0, 0, i),
			Topic:    topic,
			Sessions: sessions,
		}
	}
	return days
}
