package dataset

import (
	"os"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

var (
	labelMapItemRe = regexp.MustCompile(`item\s*\{[^}]*\}`)
	labelMapIDRe   = regexp.MustCompile(`id:\s*(\d+)`)
	labelMapNameRe = regexp.MustCompile(`name:\s*['"]([^'"]+)['"]`)
)

// ParseLabelMap reads a pascal_label_map.pbtxt file and returns the id to
// class-name mapping. The format is a flat list of item blocks:
//
//	item {
//	  id: 1
//	  name: 'tooth'
//	}
func ParseLabelMap(path string) (map[int]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading label map %s", path)
	}

	labelMap := make(map[int]string)
	for _, item := range labelMapItemRe.FindAllString(string(content), -1) {
		idMatch := labelMapIDRe.FindStringSubmatch(item)
		nameMatch := labelMapNameRe.FindStringSubmatch(item)
		if idMatch == nil || nameMatch == nil {
			return nil, errors.Errorf("malformed label map item in %s: %q", path, item)
		}
		id, err := strconv.Atoi(idMatch[1])
		if err != nil {
			return nil, errors.Wrapf(err, "parsing label id in %s", path)
		}
		labelMap[id] = nameMatch[1]
	}
	return labelMap, nil
}

// ParseInverseLabelMap returns the class-name to id mapping of a label map.
func ParseInverseLabelMap(path string) (map[string]int, error) {
	labelMap, err := ParseLabelMap(path)
	if err != nil {
		return nil, err
	}
	inverse := make(map[string]int, len(labelMap))
	for id, name := range labelMap {
		inverse[name] = id
	}
	return inverse, nil
}
