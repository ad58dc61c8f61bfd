// Package miner drives mining tasks: folder discovery, chunked
// fetching, worker-pool parsing and contact extraction.
package miner

import (
	"strings"

	"github.com/ankaboot-source/leadminer-engine/internal/mailclient"
)

// FolderNode is one folder in the account tree. Children is nil for
// a leaf so a leaf is distinguishable from an empty folder. Total
// holds the node's own count plus all descendant totals.
type FolderNode struct {
	Label      string        `json:"label"`
	Path       string        `json:"path"`
	Attributes []string      `json:"attributes,omitempty"`
	Own        uint32        `json:"total_individual"`
	Total      uint32        `json:"total"`
	Children   []*FolderNode `json:"children,omitempty"`
}

// BuildFolderTree turns a flat server listing into a tree rooted at
// the account. Paths come from structural position in the hierarchy,
// so two folders with the same label at different depths stay
// distinct. Intermediate folders the server never listed explicitly
// are materialized with a zero own-count.
func BuildFolderTree(accountEmail string, listing []mailclient.FolderInfo) *FolderNode {
	root := &FolderNode{Label: accountEmail, Path: ""}

	for _, folder := range listing {
		delim := folder.Delim
		segments := []string{folder.Name}
		if delim != "" {
			segments = strings.Split(folder.Name, delim)
		}
		node := insertPath(root, segments, delim)
		node.Attributes = folder.Attrs
		node.Own = folder.Total
	}

	computeTotals(root)
	return root
}

// insertPath walks segments from the root, creating missing nodes,
// and returns the node at the full path.
func insertPath(root *FolderNode, segments []string, delim string) *FolderNode {
	node := root
	path := ""
	for _, label := range segments {
		if path == "" {
			path = label
		} else {
			path = path + delim + label
		}

		child := findChild(node, label)
		if child == nil {
			child = &FolderNode{Label: label, Path: path}
			node.Children = append(node.Children, child)
		}
		node = child
	}
	return node
}

func findChild(node *FolderNode, label string) *FolderNode {
	for _, child := range node.Children {
		if child.Label == label {
			return child
		}
	}
	return nil
}

// computeTotals fills Total bottom-up: own count plus the sum of all
// children's totals.
func computeTotals(node *FolderNode) uint32 {
	total := node.Own
	for _, child := range node.Children {
		total += computeTotals(child)
	}
	node.Total = total
	return total
}

// LeafPaths returns the paths of every selectable folder in the
// tree, depth-first. Folders flagged non-selectable by the server
// are skipped.
func LeafPaths(node *FolderNode) []string {
	var paths []string
	var walk func(n *FolderNode)
	walk = func(n *FolderNode) {
		if n.Path != "" && !hasAttr(n.Attributes, "\\Noselect") {
			paths = append(paths, n.Path)
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(node)
	return paths
}

func hasAttr(attrs []string, want string) bool {
	for _, a := range attrs {
		if strings.EqualFold(a, want) {
			return true
		}
	}
	return false
}
