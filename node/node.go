// Package node records a directory tree so a batch rcs invocation
// ("process every archive under a directory") can pair each working
// file with its sibling ",v" archive — either alongside it or under a
// "RCS/" subdirectory, per the usual RCS pathname convention — without
// re-walking the filesystem once per file.
package node

import (
	"os"
	"path/filepath"
	"strings"
)

// Node is one directory or file entry in the scanned tree.
type Node struct {
	Name            string
	Path            string
	IsFile          bool
	CaseInsensitive bool
	Children        []*Node
}

func (n *Node) stringEqual(s1, s2 string) bool {
	if n.CaseInsensitive {
		return len(s1) == len(s2) && strings.EqualFold(s1, s2)
	}
	return len(s1) == len(s2) && s1 == s2
}

func NewNode(name string, caseInsensitive bool) *Node {
	return &Node{Name: name, CaseInsensitive: caseInsensitive}
}

func (n *Node) AddSubFile(fullPath string, subPath string) {
	parts := strings.Split(subPath, "/")
	if len(parts) == 1 {
		for _, c := range n.Children {
			if n.stringEqual(c.Name, parts[0]) {
				return // file already registered
			}
		}
		n.Children = append(n.Children, &Node{Name: parts[0], IsFile: true, Path: fullPath, CaseInsensitive: n.CaseInsensitive})
	} else {
		for _, c := range n.Children {
			if n.stringEqual(c.Name, parts[0]) {
				c.AddSubFile(fullPath, strings.Join(parts[1:], "/"))
				return
			}
		}
		n.Children = append(n.Children, NewNode(parts[0], n.CaseInsensitive))
		n.Children[len(n.Children)-1].AddSubFile(fullPath, strings.Join(parts[1:], "/"))
	}
}

func (n *Node) AddFile(path string) {
	n.AddSubFile(path, path)
}

func (n *Node) getChildFiles() []string {
	files := make([]string, 0)
	for _, c := range n.Children {
		if c.IsFile {
			files = append(files, c.Path)
		} else {
			files = append(files, c.getChildFiles()...)
		}
	}
	return files
}

// Return a list of all files in a directory
func (n *Node) GetFiles(dirName string) []string {
	files := make([]string, 0)
	// Root of node tree - just get all files
	if n.Name == "" && dirName == "" {
		files = append(files, n.getChildFiles()...)
		return files
	}
	// Otherwise check directory is one of the children of current node
	parts := strings.Split(dirName, "/")
	if len(parts) == 1 {
		for _, c := range n.Children {
			if n.stringEqual(c.Name, parts[0]) {
				if c.IsFile {
					files = append(files, c.Path)
				} else {
					files = append(files, c.getChildFiles()...)
				}
			}
		}
		return files
	} else {
		for _, c := range n.Children {
			if n.stringEqual(c.Name, parts[0]) {
				return c.GetFiles(strings.Join(parts[1:], "/"))
			}
		}
	}
	return files
}

// ArchivePair is a working file matched with its RCS archive, discovered by
// ScanDirectory.
type ArchivePair struct {
	WorkingFile string // "" if the archive exists with no checked-out working file
	ArchiveFile string
}

// ScanDirectory walks root, builds a Node tree of every plain file found,
// and returns the ArchivePairs it can resolve: every "*,v" file (whether
// sitting next to its working file or inside a sibling "RCS/" directory)
// paired with that working file if present.
func ScanDirectory(root string) ([]ArchivePair, error) {
	tree := NewNode("", false)
	var archives []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		tree.AddFile(rel)
		if strings.HasSuffix(rel, ",v") {
			archives = append(archives, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	pairs := make([]ArchivePair, 0, len(archives))
	for _, a := range archives {
		working := workingFileFor(a)
		wf := ""
		if tree.FindFile(working) {
			wf = working
		}
		pairs = append(pairs, ArchivePair{WorkingFile: wf, ArchiveFile: a})
	}
	return pairs, nil
}

// workingFileFor derives a working-file path from an archive path,
// stripping the ",v" suffix and, when the archive lives in an "RCS/"
// directory, hoisting the result up to that directory's parent.
func workingFileFor(archivePath string) string {
	base := strings.TrimSuffix(archivePath, ",v")
	dir, file := filepath.Split(base)
	dir = strings.TrimSuffix(dir, string(filepath.Separator))
	if filepath.Base(dir) == "RCS" {
		return filepath.Join(filepath.Dir(dir), file)
	}
	return base
}

// Returns true if it finds a single file with specified name
func (n *Node) FindFile(fileName string) bool {
	parts := strings.Split(fileName, "/")
	dir := ""
	if len(parts) > 1 {
		dir = strings.Join(parts[:len(parts)-1], "/")
	}
	files := n.GetFiles(dir)
	for _, f := range files {
		if n.stringEqual(f, fileName) {
			return true
		}
	}
	return false
}
