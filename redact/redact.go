// Package redact scrubs prompt text before it reaches a log.
//
// Prompt lines can hold secrets in variable expansions, assignments and
// quoted arguments. Line removes all three while keeping enough of the
// command shape to debug completion behavior.
package redact

import (
	"bytes"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// safeVars are environment variables whose values are not sensitive.
var safeVars = map[string]bool{
	"HOME": true, "USER": true, "PWD": true, "OLDPWD": true,
	"SHELL": true, "PATH": true, "LANG": true, "TERM": true,
	"EDITOR": true, "PAGER": true, "HOSTNAME": true, "LOGNAME": true,
	"TMPDIR": true, "XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true,
	"XDG_RUNTIME_DIR": true, "SHLVL": true,
	// PowerShell spellings
	"USERPROFILE": true, "APPDATA": true, "LOCALAPPDATA": true, "TEMP": true,
	"TMP": true, "COMPUTERNAME": true, "USERNAME": true, "PSModulePath": true,
}

// specialParams are shell special parameters.
var specialParams = map[string]bool{
	"?": true, "!": true, "#": true, "@": true, "*": true,
	"-": true, "$": true, "_": true,
	"0": true, "1": true, "2": true, "3": true, "4": true,
	"5": true, "6": true, "7": true, "8": true, "9": true,
	// PowerShell automatic variables that show up while completing
	"env": true, "true": true, "false": true, "null": true, "PSScriptRoot": true,
}

// Line strips quoted content, then redacts variables and assignment values.
func Line(line string) string {
	return Command(StripQuoted(line))
}

// Command replaces sensitive variable references and assignment values.
// Safe variables and special parameters are kept.
func Command(cmd string) string {
	cmd = redactEnvDrive(cmd)

	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(true))
	prog, err := parser.Parse(strings.NewReader(cmd), "")
	if err != nil {
		return regexRedact(cmd)
	}

	syntax.Walk(prog, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.ParamExp:
			if n.Param != nil && !safeVars[n.Param.Value] && !specialParams[n.Param.Value] {
				n.Param.Value = "REDACTED"
			}
		case *syntax.Assign:
			if n.Name != nil && !safeVars[n.Name.Value] && n.Value != nil {
				n.Value.Parts = []syntax.WordPart{&syntax.Lit{Value: "***"}}
			}
		}
		return true
	})

	var buf bytes.Buffer
	printer := syntax.NewPrinter(syntax.Indent(0))
	if err := printer.Print(&buf, prog); err != nil {
		return regexRedact(cmd)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// StripQuoted empties every quoted string: "abc" becomes "" and 'abc' becomes ''.
// Escaped quotes inside a quoted string do not end it.
func StripQuoted(cmd string) string {
	var buf strings.Builder
	buf.Grow(len(cmd))
	i := 0
	for i < len(cmd) {
		ch := cmd[i]
		if ch != '"' && ch != '\'' {
			buf.WriteByte(ch)
			i++
			continue
		}
		buf.WriteByte(ch)
		i++
		for i < len(cmd) {
			if cmd[i] == '\\' && i+1 < len(cmd) {
				i += 2
				continue
			}
			if cmd[i] == ch {
				break
			}
			i++
		}
		if i < len(cmd) {
			buf.WriteByte(ch)
			i++
		}
	}
	return buf.String()
}

var (
	reEnvDrive  = regexp.MustCompile(`(?i)\$env:([A-Za-z_][A-Za-z0-9_]*)`)
	reBraceVar  = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	reSimpleVar = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	reAssign    = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)=(\S+)`)
)

// redactEnvDrive handles PowerShell's $env:NAME, which bash grammar reads as
// $env followed by a literal.
func redactEnvDrive(cmd string) string {
	return reEnvDrive.ReplaceAllStringFunc(cmd, func(m string) string {
		name := reEnvDrive.FindStringSubmatch(m)[1]
		if safeVars[name] {
			return m
		}
		return m[:len(m)-len(name)] + "REDACTED"
	})
}

// regexRedact covers input the parser rejects, such as a half-typed line.
func regexRedact(cmd string) string {
	cmd = reBraceVar.ReplaceAllStringFunc(cmd, func(m string) string {
		name := reBraceVar.FindStringSubmatch(m)[1]
		if safeVars[name] || specialParams[name] {
			return m
		}
		return "${REDACTED}"
	})

	cmd = reSimpleVar.ReplaceAllStringFunc(cmd, func(m string) string {
		name := reSimpleVar.FindStringSubmatch(m)[1]
		if name == "REDACTED" || safeVars[name] || specialParams[name] {
			return m
		}
		return "$REDACTED"
	})

	cmd = reAssign.ReplaceAllStringFunc(cmd, func(m string) string {
		name := reAssign.FindStringSubmatch(m)[1]
		if safeVars[name] {
			return m
		}
		return name + "=***"
	})

	return cmd
}
