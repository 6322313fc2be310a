package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/forge/internal/core/domain"
)

func (c *CLI) newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show the resolved dependency tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.Plan(cmd.Context())
			if err != nil {
				return err
			}

			for _, root := range roots(res.Plan) {
				printTree(cmd, res.Plan, root, "", true, true)
			}
			for _, name := range res.Plan.Runtime {
				cmd.Println("runtime: " + name)
			}
			return nil
		},
	}
}

// roots are the planned packages nothing else depends on, in plan order.
func roots(plan *domain.BuildPlan) []string {
	depended := make(map[string]bool)
	for _, node := range plan.Nodes {
		for _, dep := range node.Deps {
			depended[dep] = true
		}
	}

	var out []string
	for _, node := range plan.Nodes {
		if !depended[node.Name] {
			out = append(out, node.Name)
		}
	}
	return out
}

func printTree(cmd *cobra.Command, plan *domain.BuildPlan, name, prefix string, last, root bool) {
	node, ok := plan.Lookup(name)
	if !ok {
		return
	}

	if root {
		cmd.Println(node.Name + " " + node.Version)
	} else {
		connector := "├── "
		if last {
			connector = "└── "
		}
		cmd.Println(prefix + connector + node.Name + " " + node.Version)
		if last {
			prefix += "    "
		} else {
			prefix += "│   "
		}
	}

	for i, dep := range node.Deps {
		printTree(cmd, plan, dep, prefix, i == len(node.Deps)-1, false)
	}
}
