package process

import (
	"fmt"
	"regexp"
	"strings"

	"harness/internal/domain/execution"
)

const (
	rustSourceFilename = "main.rs"
	rustBinaryFilename = "program"
)

var (
	rustFnPattern   = regexp.MustCompile(`(?m)^(?:pub(?:\([^)]*\))?\s+)?(?:const\s+)?(?:async\s+)?(?:unsafe\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)\s*(?:<[^{(]*>)?\s*\(`)
	rustMainPattern = regexp.MustCompile(`(?m)^((?:pub\s+)?)fn\s+main\s*\(`)
)

type rustToolchain struct{}

func (rustToolchain) sourceName() string   { return rustSourceFilename }
func (rustToolchain) artifactName() string { return rustBinaryFilename }

func (rustToolchain) compileCommand() []string {
	return []string{"rustc", "--edition", "2021", "-A", "warnings", "-o", rustBinaryFilename, rustSourceFilename}
}

func (rustToolchain) runCommand(index int, _ execution.Budget) []string {
	return []string{"./" + rustBinaryFilename, fmt.Sprint(index)}
}

func (rustToolchain) signatures(source string) []signature {
	return scanSignatures(source, rustFnPattern, parseRustParam)
}

func parseRustParam(raw string) param {
	name, typ, _ := cutTopLevel(raw, ':')
	name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "mut "))
	return param{name: name, typ: strings.TrimSpace(typ)}
}

func (rustToolchain) program(source string, calls []plannedCall) (string, error) {
	var b strings.Builder
	b.WriteString(renameEntry(source, rustMainPattern, "${1}fn harness_user_main("))
	b.WriteString("\n\n")
	b.WriteString(rustPrelude)
	b.WriteString("\nfn main() {\n")
	b.WriteString("    std::panic::set_hook(Box::new(|_| {}));\n")
	b.WriteString("    let index: usize = std::env::args().nth(1).and_then(|a| a.parse().ok()).unwrap_or(usize::MAX);\n")
	b.WriteString("    let outcome = std::panic::catch_unwind(std::panic::AssertUnwindSafe(|| -> String { match index {\n")
	for _, call := range calls {
		args := make([]string, len(call.call.Arguments))
		for i, arg := range call.call.Arguments {
			args[i] = rustLiteral(arg, call.sig.paramType(i))
		}
		fmt.Fprintf(&b, "        %d => HarnessJson::harness_json(&%s(%s)),\n", call.index, call.sig.name, strings.Join(args, ", "))
	}
	b.WriteString("        _ => panic!(\"unknown call {}\", index),\n")
	b.WriteString("    } }));\n")
	b.WriteString("    harness_emit(outcome);\n")
	b.WriteString("}\n")
	return b.String(), nil
}

func rustLiteral(v execution.Value, typ string) string {
	typ = strings.TrimSpace(typ)
	if args, ok := genericArgs(typ, "Option"); ok && len(args) == 1 {
		if v.IsNull() {
			return "None"
		}
		return "Some(" + rustLiteral(v, args[0]) + ")"
	}

	borrow := ""
	switch {
	case strings.HasPrefix(typ, "&mut "):
		borrow, typ = "&mut ", strings.TrimSpace(strings.TrimPrefix(typ, "&mut "))
	case strings.HasPrefix(typ, "&"):
		borrow, typ = "&", strings.TrimSpace(strings.TrimPrefix(typ, "&"))
	}

	switch v.Kind() {
	case execution.KindNull:
		return "None"
	case execution.KindBool:
		return fmt.Sprint(v.AsBool())
	case execution.KindNumber:
		n := v.AsNumber()
		if typeContains(typ, "f32", "f64") || !isIntegral(n) {
			return floatLiteral(n)
		}
		return intLiteral(n)
	case execution.KindString:
		s := v.AsString()
		if typ == "char" && singleRune(s) {
			quoted := quoteString(s, bracedUnicode, map[rune]string{'\'': `\'`, '"': `"`})
			return "'" + quoted[1:len(quoted)-1] + "'"
		}
		quoted := quoteString(s, bracedUnicode, nil)
		if typ == "str" {
			return quoted
		}
		return borrow + quoted + ".to_string()"
	case execution.KindSequence:
		elem, array := rustElementType(typ)
		items := make([]string, len(v.Items()))
		for i, item := range v.Items() {
			items[i] = rustLiteral(item, elem)
		}
		if array {
			return borrow + "[" + strings.Join(items, ", ") + "]"
		}
		return borrow + "vec![" + strings.Join(items, ", ") + "]"
	case execution.KindMap:
		ctor := "std::collections::HashMap::from"
		keyType, valueType := "String", ""
		if args, ok := genericArgs(typ, "BTreeMap"); ok && len(args) == 2 {
			ctor = "std::collections::BTreeMap::from"
			keyType, valueType = args[0], args[1]
		} else if args, ok := genericArgs(typ, "HashMap"); ok && len(args) >= 2 {
			keyType, valueType = args[0], args[1]
		}
		entries := make([]string, len(v.Entries()))
		for i, entry := range v.Entries() {
			entries[i] = "(" + rustLiteral(execution.String(entry.Key), keyType) + ", " + rustLiteral(entry.Value, valueType) + ")"
		}
		return borrow + ctor + "([" + strings.Join(entries, ", ") + "])"
	default:
		return "None"
	}
}

// rustElementType returns the element type of Vec<T>, [T] and [T; N], and
// whether the literal must be a fixed-size array.
func rustElementType(typ string) (string, bool) {
	if args, ok := genericArgs(typ, "Vec", "VecDeque"); ok && len(args) == 1 {
		return args[0], false
	}
	if strings.HasPrefix(typ, "[") && strings.HasSuffix(typ, "]") {
		inner := typ[1 : len(typ)-1]
		elem, _, sized := cutTopLevel(inner, ';')
		return strings.TrimSpace(elem), sized
	}
	return "", false
}

const rustPrelude = `trait HarnessJson {
    fn harness_json(&self) -> String;
}

macro_rules! harness_json_display {
    ($($t:ty),*) => {
        $(impl HarnessJson for $t {
            fn harness_json(&self) -> String {
                self.to_string()
            }
        })*
    };
}

harness_json_display!(bool, i8, i16, i32, i64, i128, isize, u8, u16, u32, u64, u128, usize);

fn harness_float(v: f64) -> String {
    if !v.is_finite() {
        panic!("cannot represent non-finite number {}", v);
    }
    if v.fract() == 0.0 && v.abs() < 1e15 {
        format!("{}", v as i64)
    } else {
        format!("{:?}", v)
    }
}

fn harness_quote(s: &str) -> String {
    let mut out = String::with_capacity(s.len() + 2);
    out.push('"');
    for c in s.chars() {
        match c {
            '"' => out.push_str("\\\""),
            '\\' => out.push_str("\\\\"),
            '\n' => out.push_str("\\n"),
            '\r' => out.push_str("\\r"),
            '\t' => out.push_str("\\t"),
            c if (c as u32) < 0x20 => out.push_str(&format!("\\u{:04x}", c as u32)),
            c => out.push(c),
        }
    }
    out.push('"');
    out
}

impl HarnessJson for f64 {
    fn harness_json(&self) -> String {
        harness_float(*self)
    }
}

impl HarnessJson for f32 {
    fn harness_json(&self) -> String {
        harness_float(*self as f64)
    }
}

impl HarnessJson for str {
    fn harness_json(&self) -> String {
        harness_quote(self)
    }
}

impl HarnessJson for String {
    fn harness_json(&self) -> String {
        harness_quote(self)
    }
}

impl HarnessJson for char {
    fn harness_json(&self) -> String {
        harness_quote(&self.to_string())
    }
}

impl HarnessJson for () {
    fn harness_json(&self) -> String {
        "null".to_string()
    }
}

impl<T: HarnessJson + ?Sized> HarnessJson for &T {
    fn harness_json(&self) -> String {
        (**self).harness_json()
    }
}

impl<T: HarnessJson + ?Sized> HarnessJson for Box<T> {
    fn harness_json(&self) -> String {
        (**self).harness_json()
    }
}

impl<T: HarnessJson> HarnessJson for [T] {
    fn harness_json(&self) -> String {
        let items: Vec<String> = self.iter().map(|v| v.harness_json()).collect();
        format!("[{}]", items.join(","))
    }
}

impl<T: HarnessJson, const N: usize> HarnessJson for [T; N] {
    fn harness_json(&self) -> String {
        self[..].harness_json()
    }
}

impl<T: HarnessJson> HarnessJson for Vec<T> {
    fn harness_json(&self) -> String {
        self[..].harness_json()
    }
}

impl<T: HarnessJson> HarnessJson for std::collections::VecDeque<T> {
    fn harness_json(&self) -> String {
        let items: Vec<String> = self.iter().map(|v| v.harness_json()).collect();
        format!("[{}]", items.join(","))
    }
}

impl<T: HarnessJson> HarnessJson for Option<T> {
    fn harness_json(&self) -> String {
        match self {
            Some(v) => v.harness_json(),
            None => "null".to_string(),
        }
    }
}

impl<T: HarnessJson, E: std::fmt::Debug> HarnessJson for Result<T, E> {
    fn harness_json(&self) -> String {
        match self {
            Ok(v) => v.harness_json(),
            Err(e) => panic!("{:?}", e),
        }
    }
}

impl<A: HarnessJson, B: HarnessJson> HarnessJson for (A, B) {
    fn harness_json(&self) -> String {
        format!("[{},{}]", self.0.harness_json(), self.1.harness_json())
    }
}

impl<A: HarnessJson, B: HarnessJson, C: HarnessJson> HarnessJson for (A, B, C) {
    fn harness_json(&self) -> String {
        format!("[{},{},{}]", self.0.harness_json(), self.1.harness_json(), self.2.harness_json())
    }
}

fn harness_object<'a, K: std::fmt::Display + 'a, V: HarnessJson + 'a>(entries: impl Iterator<Item = (&'a K, &'a V)>) -> String {
    let mut pairs: Vec<(String, String)> = entries.map(|(k, v)| (k.to_string(), v.harness_json())).collect();
    pairs.sort_by(|a, b| a.0.cmp(&b.0));
    let fields: Vec<String> = pairs.into_iter().map(|(k, v)| format!("{}:{}", harness_quote(&k), v)).collect();
    format!("{{{}}}", fields.join(","))
}

impl<K: std::fmt::Display, V: HarnessJson, S> HarnessJson for std::collections::HashMap<K, V, S> {
    fn harness_json(&self) -> String {
        harness_object(self.iter())
    }
}

impl<K: std::fmt::Display, V: HarnessJson> HarnessJson for std::collections::BTreeMap<K, V> {
    fn harness_json(&self) -> String {
        harness_object(self.iter())
    }
}

fn harness_emit(outcome: std::thread::Result<String>) {
    let line = match outcome {
        Ok(json) => format!("{{\"ok\":true,\"value\":{}}}", json),
        Err(payload) => {
            let message = if let Some(s) = payload.downcast_ref::<&str>() {
                s.to_string()
            } else if let Some(s) = payload.downcast_ref::<String>() {
                s.clone()
            } else {
                "panic".to_string()
            };
            format!("{{\"ok\":false,\"error\":{}}}", harness_quote(&message))
        }
    };
    eprintln!("@@harness@@{}", line);
}
`
