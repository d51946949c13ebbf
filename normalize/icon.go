package normalize

import termsuggest "github.com/Paranoid-AF/termsuggest"

// kindIcons maps result kinds to their icon.
var kindIcons = map[termsuggest.ResultKind]termsuggest.Icon{
	termsuggest.KindText:           termsuggest.IconSymbolText,
	termsuggest.KindHistory:        termsuggest.IconHistory,
	termsuggest.KindCommand:        termsuggest.IconSymbolMethod,
	termsuggest.KindFile:           termsuggest.IconSymbolFile,
	termsuggest.KindDirectory:      termsuggest.IconFolder,
	termsuggest.KindProperty:       termsuggest.IconSymbolProperty,
	termsuggest.KindMethod:         termsuggest.IconSymbolMethod,
	termsuggest.KindParameterName:  termsuggest.IconSymbolVariable,
	termsuggest.KindParameterValue: termsuggest.IconSymbolValue,
	termsuggest.KindVariable:       termsuggest.IconSymbolVariable,
	termsuggest.KindNamespace:      termsuggest.IconSymbolNamespace,
	termsuggest.KindType:           termsuggest.IconSymbolInterface,
	termsuggest.KindKeyword:        termsuggest.IconSymbolKeyword,
	termsuggest.KindDynamicKeyword: termsuggest.IconSymbolKeyword,
}

// customIcons lists the icon ids a shell may name explicitly.
// Ids use the camelCase form the integration scripts emit.
var customIcons = map[string]termsuggest.Icon{
	"symbolText":      termsuggest.IconSymbolText,
	"history":         termsuggest.IconHistory,
	"symbolMethod":    termsuggest.IconSymbolMethod,
	"symbolFile":      termsuggest.IconSymbolFile,
	"folder":          termsuggest.IconFolder,
	"symbolProperty":  termsuggest.IconSymbolProperty,
	"symbolVariable":  termsuggest.IconSymbolVariable,
	"symbolValue":     termsuggest.IconSymbolValue,
	"symbolNamespace": termsuggest.IconSymbolNamespace,
	"symbolInterface": termsuggest.IconSymbolInterface,
	"symbolKeyword":   termsuggest.IconSymbolKeyword,
	"symbolField":     "symbol-field",
	"symbolEnum":      "symbol-enum",
	"symbolEvent":     "symbol-event",
	"symbolOperator":  "symbol-operator",
	"symbolSnippet":   "symbol-snippet",
	"gitBranch":       "git-branch",
	"gitCommit":       "git-commit",
	"tag":             "tag",
	"remote":          "remote",
	"vscode":          "vscode",
	"arrowRight":      "arrow-right",
}

// iconFor picks the icon for a record: a known custom icon wins, then the kind table,
// then the generic text symbol.
func iconFor(kind termsuggest.ResultKind, customIcon *string) termsuggest.Icon {
	if customIcon != nil {
		if icon, ok := customIcons[*customIcon]; ok {
			return icon
		}
	}
	if icon, ok := kindIcons[kind]; ok {
		return icon
	}
	return termsuggest.IconSymbolText
}

// KnownIcon reports whether id names an icon a shell may request.
func KnownIcon(id string) bool {
	_, ok := customIcons[id]
	return ok
}
