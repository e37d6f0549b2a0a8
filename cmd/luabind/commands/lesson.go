package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/luabind/pkg/tutorial"
)

var lessonCmd = &cobra.Command{
	Use:   "lesson <name>",
	Short: "Run a tutorial lesson",
	Long: `Run one tutorial lesson by name. Use 'luabind lessons' to list them.

Each lesson is also available as a top-level command, so
'luabind lesson inherit' and 'luabind inherit' are the same.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: lessonNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := tutorial.Lookup(args[0])
		if err != nil {
			return err
		}
		return runLesson(cmd, l)
	},
}

var lessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "List tutorial lessons",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var rows [][]string
		for _, l := range tutorial.Lessons() {
			rows = append(rows, []string{l.Name, l.Script, l.Short})
		}
		a.console.Table([]string{"NAME", "SCRIPT", "DESCRIPTION"}, rows)
		return nil
	},
}

func runLesson(cmd *cobra.Command, l *tutorial.Lesson) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return l.Exec(cmd.Context(), a.env())
}

func lessonNames() []string {
	var names []string
	for _, l := range tutorial.Lessons() {
		names = append(names, l.Name)
	}
	return names
}

func init() {
	rootCmd.AddCommand(lessonCmd)
	rootCmd.AddCommand(lessonsCmd)

	rootCmd.AddGroup(&cobra.Group{ID: "lessons", Title: "Lessons:"})
	for _, l := range tutorial.Lessons() {
		rootCmd.AddCommand(&cobra.Command{
			Use:     l.Name,
			Short:   "Lesson: " + l.Short,
			Args:    cobra.NoArgs,
			GroupID: "lessons",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runLesson(cmd, l)
			},
		})
	}
}
