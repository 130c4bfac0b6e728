package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/google/memvfs/bulkapply"
	"github.com/google/memvfs/extmount"
)

// yamlEntry mirrors bulkapply.Entry in a form yaml.v3 can decode directly:
// a tagged "kind" plus the union of fields each kind needs. Children nests
// recursively, matching FileMap's declarative-tree shape (spec §4.10).
type yamlEntry struct {
	Kind string `yaml:"kind"`

	Uid  *uint32           `yaml:"uid"`
	Gid  *uint32           `yaml:"gid"`
	Mode *Octal            `yaml:"mode"`
	Meta map[string]string `yaml:"meta"`

	Content  string                `yaml:"content"`
	Children map[string]*yamlEntry `yaml:"children"`

	LinkTarget    string `yaml:"link-target"`
	SymlinkTarget string `yaml:"symlink-target"`
	MountSource   string `yaml:"mount-source"`
}

// LoadFileMap reads a YAML FileMap document (keyed entries at the document
// root) and converts it to a bulkapply.FileMap ready for Apply. Mount
// entries resolve against the real OS filesystem via extmount.OSResolver.
func LoadFileMap(path string) (bulkapply.FileMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]*yamlEntry
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return convertMap(doc), nil
}

func convertMap(doc map[string]*yamlEntry) bulkapply.FileMap {
	m := make(bulkapply.FileMap, len(doc))
	for name, e := range doc {
		m[name] = convertEntry(e)
	}
	return m
}

func convertEntry(e *yamlEntry) *bulkapply.Entry {
	if e == nil {
		return nil
	}

	out := &bulkapply.Entry{
		Kind: kindFromString(e.Kind),
		Meta: e.Meta,
	}
	if e.Uid != nil {
		out.Uid = *e.Uid
	}
	if e.Gid != nil {
		out.Gid = *e.Gid
	}
	if e.Mode != nil {
		out.Mode = uint32(*e.Mode)
		out.HasMode = true
	}

	switch out.Kind {
	case bulkapply.KindDirectory:
		out.Children = convertChildren(e.Children)
	case bulkapply.KindLink:
		out.LinkTarget = e.LinkTarget
	case bulkapply.KindSymlink:
		out.SymlinkTarget = e.SymlinkTarget
	case bulkapply.KindMount:
		out.MountSource = e.MountSource
		out.MountResolver = extmount.OSResolver{}
	default: // KindAuto / KindFile
		out.Content = []byte(e.Content)
		if e.Children != nil {
			out.Children = convertChildren(e.Children)
		}
	}
	return out
}

func convertChildren(children map[string]*yamlEntry) map[string]*bulkapply.Entry {
	if children == nil {
		return nil
	}
	out := make(map[string]*bulkapply.Entry, len(children))
	for name, c := range children {
		out[name] = convertEntry(c)
	}
	return out
}

func kindFromString(s string) bulkapply.Kind {
	switch s {
	case "file":
		return bulkapply.KindFile
	case "directory", "dir":
		return bulkapply.KindDirectory
	case "link":
		return bulkapply.KindLink
	case "symlink":
		return bulkapply.KindSymlink
	case "mount":
		return bulkapply.KindMount
	case "absent":
		return bulkapply.KindAbsent
	default:
		return bulkapply.KindAuto
	}
}
