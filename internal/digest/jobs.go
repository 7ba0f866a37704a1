package digest

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	robcron "github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// JobsFile is the digests.yaml layout.
type JobsFile struct {
	Timezone string `yaml:"timezone,omitempty"`
	Jobs     []Job  `yaml:"jobs"`
}

// Job is one scheduled digest. An empty Chats list means every chat the
// automation backend currently shows.
type Job struct {
	Name     string   `yaml:"name"`
	Schedule string   `yaml:"schedule"`
	Chats    []string `yaml:"chats,omitempty"`
	Messages int      `yaml:"messages,omitempty"`
	EmailTo  string   `yaml:"email_to,omitempty"`
}

// cronParser accepts standard five-field expressions plus @hourly-style
// descriptors.
var cronParser = robcron.NewParser(
	robcron.Minute | robcron.Hour | robcron.Dom | robcron.Month | robcron.Dow | robcron.Descriptor,
)

func LoadJobs(path string) (JobsFile, error) {
	if strings.TrimSpace(path) == "" {
		path = "digests.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return JobsFile{}, err
	}
	var file JobsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return JobsFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range file.Jobs {
		file.Jobs[i].applyDefaults()
		if err := file.Jobs[i].Validate(); err != nil {
			return JobsFile{}, fmt.Errorf("%s: job %d: %w", path, i, err)
		}
	}
	return file, nil
}

func (j *Job) applyDefaults() {
	if j == nil {
		return
	}
	j.Name = strings.TrimSpace(j.Name)
	j.Schedule = strings.TrimSpace(j.Schedule)
	if j.Messages <= 0 {
		j.Messages = 20
	}
	chats := j.Chats[:0]
	for _, c := range j.Chats {
		if c = strings.TrimSpace(c); c != "" {
			chats = append(chats, c)
		}
	}
	j.Chats = chats
}

func (j Job) Validate() error {
	if j.Name == "" {
		return errors.New("name is required")
	}
	if j.Schedule == "" {
		return errors.New("schedule is required")
	}
	if _, err := cronParser.Parse(j.Schedule); err != nil {
		return fmt.Errorf("parse schedule %q: %w", j.Schedule, err)
	}
	return nil
}

// NextRun is the first firing of the job's schedule after now, in loc.
func (j Job) NextRun(now time.Time, loc *time.Location) (time.Time, error) {
	schedule, err := cronParser.Parse(j.Schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule %q: %w", j.Schedule, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return schedule.Next(now.In(loc)), nil
}

func (f JobsFile) Location() (*time.Location, error) {
	name := strings.TrimSpace(f.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}
