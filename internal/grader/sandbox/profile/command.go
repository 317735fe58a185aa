package profile

import (
	"strings"

	appErr "examgrader/pkg/errors"

	"github.com/google/shlex"
)

// Commands holds the argv for each step of one language. Compile is nil
// when the language has no build step.
type Commands struct {
	Compile []string
	Run     []string
}

// CommandFor expands the templates of lang for a source file at filePath.
// It performs no I/O.
func CommandFor(lang LanguageSpec, filePath string, host HostFamily) (Commands, error) {
	if strings.TrimSpace(filePath) == "" {
		return Commands{}, appErr.New(appErr.InvalidParams).WithMessage("source path is required")
	}
	vars := templateVars(lang, filePath, host)

	var cmds Commands
	var err error
	if lang.CompileEnabled {
		cmds.Compile, err = buildCommand(lang.CompileCmdTpl, vars)
		if err != nil {
			return Commands{}, err
		}
	}
	cmds.Run, err = buildCommand(lang.RunCmdTpl, vars)
	if err != nil {
		return Commands{}, err
	}
	return cmds, nil
}

// CompoundCommand joins the compile and run steps into a single shell
// invocation where a failed compile skips the run. Languages without a
// compile step return the run argv unchanged.
func CompoundCommand(lang LanguageSpec, filePath string, host HostFamily) ([]string, error) {
	cmds, err := CommandFor(lang, filePath, host)
	if err != nil {
		return nil, err
	}
	if cmds.Compile == nil {
		return cmds.Run, nil
	}
	line := joinArgs(cmds.Compile, host) + " && " + joinArgs(cmds.Run, host)
	if host == HostWindows {
		return []string{"cmd", "/c", line}, nil
	}
	return []string{"sh", "-c", line}, nil
}

func templateVars(lang LanguageSpec, filePath string, host HostFamily) map[string]string {
	dir := parentDir(filePath, host)
	bin := lang.BinaryFile
	if bin != "" && host == HostWindows && !strings.HasSuffix(strings.ToLower(bin), ".exe") {
		bin += ".exe"
	}
	return map[string]string{
		"{src}":   filePath,
		"{dir}":   dir,
		"{bin}":   joinPath(dir, bin, host),
		"{class}": lang.SourceBase,
	}
}

// buildCommand splits the template first so substituted paths never need
// quoting.
func buildCommand(tpl string, vars map[string]string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	fields, err := shlex.Split(tpl)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	for i, f := range fields {
		for k, v := range vars {
			f = strings.ReplaceAll(f, k, v)
		}
		fields[i] = f
	}
	return fields, nil
}

func separator(host HostFamily) string {
	if host == HostWindows {
		return `\`
	}
	return "/"
}

func parentDir(path string, host HostFamily) string {
	idx := strings.LastIndex(path, separator(host))
	if host == HostWindows {
		if alt := strings.LastIndex(path, "/"); alt > idx {
			idx = alt
		}
	}
	switch {
	case idx < 0:
		return "."
	case idx == 0:
		return path[:1]
	default:
		return path[:idx]
	}
}

func joinPath(dir, name string, host HostFamily) string {
	if name == "" {
		return dir
	}
	sep := separator(host)
	if strings.HasSuffix(dir, sep) {
		return dir + name
	}
	return dir + sep + name
}

func joinArgs(args []string, host HostFamily) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quoteArg(a, host)
	}
	return strings.Join(quoted, " ")
}

func quoteArg(arg string, host HostFamily) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"'&|;<>()$`\\*?") {
		return arg
	}
	if host == HostWindows {
		if arg != "" && !strings.ContainsAny(arg, " \t\"&|<>()") {
			return arg
		}
		return `"` + strings.ReplaceAll(arg, `"`, `""`) + `"`
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
