package docblock

import (
	"regexp"
	"strings"
)

var (
	varTagRe    = regexp.MustCompile(`@(?:phpstan-|psalm-)?var\s+(\S+)(?:\s+\$([A-Za-z_][A-Za-z0-9_]*))?`)
	paramTagRe  = regexp.MustCompile(`@(?:phpstan-|psalm-)?param\s+(\S+)\s+(?:\.\.\.)?&?\$([A-Za-z_][A-Za-z0-9_]*)`)
	returnTagRe = regexp.MustCompile(`@(?:phpstan-|psalm-)?return\s+(\S+)`)
)

// Tag is a single typed annotation found in a doc comment.
type Tag struct {
	Name     string
	Type     string
	Variable string
}

// Block holds the typed tags of one doc comment.
type Block struct {
	Tags []Tag
}

// IsDocComment reports whether the comment text is a /** */ block.
func IsDocComment(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/**")
}

// Parse extracts @var, @param and @return tags from a doc comment.
func Parse(text string) Block {
	var block Block
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "/**")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimLeft(line, "* ")
		if !strings.HasPrefix(line, "@") {
			continue
		}
		if m := paramTagRe.FindStringSubmatch(line); m != nil {
			block.Tags = append(block.Tags, Tag{Name: "param", Type: m[1], Variable: m[2]})
			continue
		}
		if m := returnTagRe.FindStringSubmatch(line); m != nil {
			block.Tags = append(block.Tags, Tag{Name: "return", Type: m[1]})
			continue
		}
		if m := varTagRe.FindStringSubmatch(line); m != nil {
			block.Tags = append(block.Tags, Tag{Name: "var", Type: m[1], Variable: m[2]})
		}
	}
	return block
}

// Var returns the @var type for the variable. An @var without a variable
// name applies to whatever the comment documents.
func (b Block) Var(name string) (string, bool) {
	var anonymous string
	for _, tag := range b.Tags {
		if tag.Name != "var" {
			continue
		}
		if tag.Variable == name {
			return tag.Type, true
		}
		if tag.Variable == "" && anonymous == "" {
			anonymous = tag.Type
		}
	}
	return anonymous, anonymous != ""
}

// Param returns the @param type for the named parameter.
func (b Block) Param(name string) (string, bool) {
	for _, tag := range b.Tags {
		if tag.Name == "param" && tag.Variable == name {
			return tag.Type, true
		}
	}
	return "", false
}

// Return returns the @return type.
func (b Block) Return() (string, bool) {
	for _, tag := range b.Tags {
		if tag.Name == "return" {
			return tag.Type, true
		}
	}
	return "", false
}

// VarNames lists the variables annotated with @var.
func (b Block) VarNames() []string {
	var names []string
	for _, tag := range b.Tags {
		if tag.Name == "var" && tag.Variable != "" {
			names = append(names, tag.Variable)
		}
	}
	return names
}
