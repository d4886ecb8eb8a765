package common

import (
	"fmt"
	"strings"
)

// Sections renders "TITLE\n  name : value" blocks in the order they were added.
type Sections struct {
	sb strings.Builder
}

// Section starts a new titled block
func (s *Sections) Section(title string) {
	s.sb.WriteString("\n")
	s.sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
}

// Field adds a name/value line to the current block
func (s *Sections) Field(name, value string) {
	s.sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
}

func (s *Sections) String() string {
	return s.sb.String()
}
