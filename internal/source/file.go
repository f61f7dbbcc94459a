package source

import (
	"bytes"
	"errors"
	"io"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/scenery/internal/config"
	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// scenarioFile is the on-disk format of one scenario.
type scenarioFile struct {
	Subject    string              `yaml:"subject"`
	Skip       bool                `yaml:"skip"`
	SkipReason string              `yaml:"skip_reason"`
	Tags       []string            `yaml:"tags" validate:"omitempty,dive,required"`
	Vars       map[string]string   `yaml:"vars"`
	Params     []map[string]string `yaml:"params"`
	Steps      []stepSpec          `yaml:"steps" validate:"dive"`
}

type stepSpec struct {
	Name    string            `yaml:"name" validate:"required"`
	Run     string            `yaml:"run" validate:"required"`
	Shell   string            `yaml:"shell"`
	Env     map[string]string `yaml:"env"`
	Workdir string            `yaml:"workdir"`
	SaveAs  string            `yaml:"save_as"`
	Expect  *string           `yaml:"expect"`
	Defer   string            `yaml:"defer"`
	Timeout time.Duration     `yaml:"timeout" validate:"min=0"`
}

func parseScenarioFile(path string) (*scenarioFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sceneryerrors.NewParseError(path, 0, err)
	}

	var file scenarioFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, sceneryerrors.NewParseError(path, extractLine(err), err)
	}

	if err := config.ValidateStruct(&file); err != nil {
		return nil, err
	}
	return &file, nil
}

func extractLine(err error) int {
	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}
	line, _ := strconv.Atoi(matches[1])
	return line
}
