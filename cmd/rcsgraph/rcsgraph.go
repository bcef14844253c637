package main

// rcsgraph renders an archive's revision tree (trunk plus every branch) as
// a Graphviz dot file, and optionally rasterizes it to an image.

import (
	"fmt"
	"os"

	"github.com/emicklei/dot"
	graphviz "github.com/goccy/go-graphviz"
	"github.com/perforce/p4prometheus/version"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/gnu-mirror-unofficial/rcs-go/archive"
	"github.com/gnu-mirror-unofficial/rcs-go/config"
	"github.com/gnu-mirror-unofficial/rcs-go/rcs"
)

// RCSGraph walks one archive's delta graph and renders it.
type RCSGraph struct {
	logger *logrus.Logger
	repo   *archive.Repository
	graph  *dot.Graph
	nodes  map[archive.DeltaID]dot.Node
}

func NewRCSGraph(logger *logrus.Logger, repo *archive.Repository) *RCSGraph {
	return &RCSGraph{logger: logger, repo: repo, nodes: map[archive.DeltaID]dot.Node{}}
}

func (g *RCSGraph) node(id archive.DeltaID) dot.Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	d := g.repo.Get(id)
	label := d.Num
	if d.LockedBy != "" {
		label += fmt.Sprintf("\n(locked: %s)", d.LockedBy)
	}
	n := g.graph.Node(label)
	g.nodes[id] = n
	return n
}

// Build walks the trunk from Head downward and every branch depth-first,
// mirroring the archive writer's canonicalOrder, and records one edge per
// "next" link plus one per branch point.
func (g *RCSGraph) Build() {
	g.graph = dot.NewGraph(dot.Directed)
	var walk func(id archive.DeltaID)
	walk = func(id archive.DeltaID) {
		for id != archive.NoDelta {
			d := g.repo.Get(id)
			if !d.Phantom {
				g.node(id)
				if d.Next != archive.NoDelta && !g.repo.Get(d.Next).Phantom {
					g.graph.Edge(g.node(d.Next), g.node(id), "next")
				}
			}
			for _, b := range d.Branches {
				if !g.repo.Get(b).Phantom {
					g.graph.Edge(g.node(id), g.node(b), "branch")
				}
				walk(b)
			}
			id = d.Next
		}
	}
	walk(g.repo.Head)
}

func (g *RCSGraph) WriteDot(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(g.graph.String()))
	return err
}

// RenderImage rasterizes the dot graph to path using goccy/go-graphviz, in
// the format given by gvFormat (the file extension is not consulted).
func (g *RCSGraph) RenderImage(path string, gvFormat graphviz.Format) error {
	gv := graphviz.New()
	defer gv.Close()
	parsed, err := graphviz.ParseBytes([]byte(g.graph.String()))
	if err != nil {
		return err
	}
	return gv.RenderFilename(parsed, gvFormat, path)
}

func main() {
	var (
		archivePath = kingpin.Arg(
			"archive",
			"RCS archive (,v) file to graph.",
		).Required().String()
		outputDot = kingpin.Flag(
			"output",
			"Graphviz dot file to write.",
		).Short('o').Required().String()
		outputPNG = kingpin.Flag(
			"png",
			"Also render a PNG image to this path.",
		).String()
		debug = kingpin.Flag(
			"debug",
			"Enable debugging level.",
		).Bool()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(version.Print("rcsgraph")).Author("GNU RCS (Go rewrite)")
	kingpin.CommandLine.Help = "Renders an RCS archive's revision tree as a Graphviz dot file\n"
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *debug {
		logger.Level = logrus.DebugLevel
	}
	logger.Infof("%v", version.Print("rcsgraph"))

	o, err := rcs.Open(*archivePath, config.Default())
	if err != nil {
		logger.Errorf("opening %s: %v", *archivePath, err)
		os.Exit(1)
	}
	defer o.Close()

	g := NewRCSGraph(logger, o.Repo)
	g.Build()
	if err := g.WriteDot(*outputDot); err != nil {
		logger.Errorf("writing %s: %v", *outputDot, err)
		os.Exit(1)
	}
	if *outputPNG != "" {
		if err := g.RenderImage(*outputPNG, graphviz.PNG); err != nil {
			logger.Errorf("rendering %s: %v", *outputPNG, err)
			os.Exit(1)
		}
	}
}
