package process

import (
	"fmt"
	"regexp"
	"strings"

	"harness/internal/domain/execution"
)

const (
	swiftSourceFilename = "main.swift"
	swiftBinaryFilename = "program"
)

var swiftFuncPattern = regexp.MustCompile(`(?m)^(?:(?:public|internal|private|fileprivate|open|@discardableResult|@inlinable)\s+)*func\s+([A-Za-z_][A-Za-z0-9_]*)\s*(?:<[^>]*>)?\s*\(`)

type swiftToolchain struct{}

func (swiftToolchain) sourceName() string   { return swiftSourceFilename }
func (swiftToolchain) artifactName() string { return swiftBinaryFilename }

func (swiftToolchain) compileCommand() []string {
	return []string{"swiftc", "-suppress-warnings", "-o", swiftBinaryFilename, swiftSourceFilename}
}

func (swiftToolchain) runCommand(index int, _ execution.Budget) []string {
	return []string{"./" + swiftBinaryFilename, fmt.Sprint(index)}
}

func (swiftToolchain) signatures(source string) []signature {
	return scanSignatures(source, swiftFuncPattern, parseSwiftParam)
}

func parseSwiftParam(raw string) param {
	decl, _, _ := cutTopLevel(raw, '=')
	names, typ, _ := cutTopLevel(decl, ':')
	typ = strings.TrimSpace(typ)
	for _, attr := range []string{"inout ", "@escaping ", "@autoclosure "} {
		typ = strings.TrimSpace(strings.TrimPrefix(typ, attr))
	}

	fields := strings.Fields(names)
	p := param{typ: typ}
	switch len(fields) {
	case 0:
	case 1:
		p.label, p.name = fields[0], fields[0]
	default:
		p.label, p.name = fields[0], fields[1]
	}
	if p.label == "_" {
		p.label = ""
	}
	return p
}

// program prepends the C library import the emitter needs and resets line
// numbering, so compiler diagnostics point at the submitted lines.
func (swiftToolchain) program(source string, calls []plannedCall) (string, error) {
	var b strings.Builder
	b.WriteString(swiftHeader)
	b.WriteString("#sourceLocation(file: \"main.swift\", line: 1)\n")
	b.WriteString(source)
	b.WriteString("\n#sourceLocation()\n\n")
	b.WriteString(swiftPrelude)
	b.WriteString("\nfunc harnessDispatch(_ index: Int) throws -> Any? {\n")
	b.WriteString("    switch index {\n")
	for _, call := range calls {
		args := make([]string, len(call.call.Arguments))
		for i, arg := range call.call.Arguments {
			args[i] = swiftLiteral(arg, call.sig.paramType(i))
			if label := call.sig.paramLabel(i); label != "" {
				args[i] = label + ": " + args[i]
			}
		}
		fmt.Fprintf(&b, "    case %d:\n        return try %s(%s)\n", call.index, call.sig.name, strings.Join(args, ", "))
	}
	b.WriteString("    default:\n        throw HarnessError.unknownCall(index)\n")
	b.WriteString("    }\n")
	b.WriteString("}\n\n")
	b.WriteString(swiftMain)
	return b.String(), nil
}

func swiftLiteral(v execution.Value, typ string) string {
	typ = strings.TrimSuffix(strings.TrimSpace(typ), "?")

	switch v.Kind() {
	case execution.KindNull:
		return "nil"
	case execution.KindBool:
		return fmt.Sprint(v.AsBool())
	case execution.KindNumber:
		n := v.AsNumber()
		if typeContains(typ, "Double", "Float", "CGFloat", "Float32", "Float64") || !isIntegral(n) {
			return floatLiteral(n)
		}
		return intLiteral(n)
	case execution.KindString:
		return quoteString(v.AsString(), bracedUnicode, nil)
	case execution.KindSequence:
		elem := swiftElementType(typ)
		items := make([]string, len(v.Items()))
		for i, item := range v.Items() {
			items[i] = swiftLiteral(item, elem)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case execution.KindMap:
		if v.Len() == 0 {
			return "[:]"
		}
		keyType, valueType := swiftDictionaryTypes(typ)
		entries := make([]string, len(v.Entries()))
		for i, entry := range v.Entries() {
			entries[i] = swiftLiteral(execution.String(entry.Key), keyType) + ": " + swiftLiteral(entry.Value, valueType)
		}
		return "[" + strings.Join(entries, ", ") + "]"
	default:
		return "nil"
	}
}

func swiftElementType(typ string) string {
	if args, ok := genericArgs(typ, "Array", "Set"); ok && len(args) == 1 {
		return args[0]
	}
	if strings.HasPrefix(typ, "[") && strings.HasSuffix(typ, "]") {
		inner := typ[1 : len(typ)-1]
		if _, _, isDict := cutTopLevel(inner, ':'); !isDict {
			return strings.TrimSpace(inner)
		}
	}
	return ""
}

func swiftDictionaryTypes(typ string) (string, string) {
	if args, ok := genericArgs(typ, "Dictionary"); ok && len(args) == 2 {
		return args[0], args[1]
	}
	if strings.HasPrefix(typ, "[") && strings.HasSuffix(typ, "]") {
		if key, value, ok := cutTopLevel(typ[1:len(typ)-1], ':'); ok {
			return strings.TrimSpace(key), strings.TrimSpace(value)
		}
	}
	return "String", ""
}

const swiftHeader = `#if canImport(Glibc)
import Glibc
#elseif canImport(Darwin)
import Darwin
#endif
`

const swiftPrelude = `enum HarnessError: Error {
    case unknownCall(Int)
    case nonFinite(Double)
}

func harnessQuote(_ s: String) -> String {
    var out = "\""
    for scalar in s.unicodeScalars {
        switch scalar {
        case "\"": out += "\\\""
        case "\\": out += "\\\\"
        case "\n": out += "\\n"
        case "\r": out += "\\r"
        case "\t": out += "\\t"
        default:
            if scalar.value < 0x20 {
                let hex = String(scalar.value, radix: 16)
                out += "\\u" + String(repeating: "0", count: 4 - hex.count) + hex
            } else {
                out.unicodeScalars.append(scalar)
            }
        }
    }
    return out + "\""
}

func harnessNumber(_ d: Double) throws -> String {
    guard d.isFinite else { throw HarnessError.nonFinite(d) }
    if d == d.rounded() && abs(d) < 1e15 {
        return String(Int64(d))
    }
    return "\(d)"
}

func harnessEncode(_ value: Any?) throws -> String {
    guard let value = value else { return "null" }
    let mirror = Mirror(reflecting: value)
    if mirror.displayStyle == .optional {
        guard let child = mirror.children.first else { return "null" }
        return try harnessEncode(child.value)
    }
    switch value {
    case let b as Bool: return b ? "true" : "false"
    case let i as Int: return String(i)
    case let i as Int64: return String(i)
    case let i as Int32: return String(i)
    case let i as UInt: return String(i)
    case let i as UInt64: return String(i)
    case let d as Double: return try harnessNumber(d)
    case let f as Float: return try harnessNumber(Double(f))
    case let s as String: return harnessQuote(s)
    case let c as Character: return harnessQuote(String(c))
    case let s as Substring: return harnessQuote(String(s))
    case let dict as [String: Any]:
        let fields = try dict.keys.sorted().map { harnessQuote($0) + ":" + (try harnessEncode(dict[$0])) }
        return "{" + fields.joined(separator: ",") + "}"
    case let array as [Any]:
        return "[" + (try array.map { try harnessEncode($0) }).joined(separator: ",") + "]"
    default:
        break
    }
    switch mirror.displayStyle {
    case .tuple?:
        if mirror.children.isEmpty { return "null" }
        return "[" + (try mirror.children.map { try harnessEncode($0.value) }).joined(separator: ",") + "]"
    case .set?, .collection?:
        return "[" + (try mirror.children.map { try harnessEncode($0.value) }).joined(separator: ",") + "]"
    case .dictionary?:
        var pairs: [(String, String)] = []
        for child in mirror.children {
            let entry = Array(Mirror(reflecting: child.value).children)
            if entry.count == 2 {
                pairs.append(("\(entry[0].value)", try harnessEncode(entry[1].value)))
            }
        }
        pairs.sort { $0.0 < $1.0 }
        return "{" + pairs.map { harnessQuote($0.0) + ":" + $0.1 }.joined(separator: ",") + "}"
    case .struct?, .class?:
        var fields: [String] = []
        for child in mirror.children {
            if let label = child.label {
                fields.append(harnessQuote(label) + ":" + (try harnessEncode(child.value)))
            }
        }
        return "{" + fields.joined(separator: ",") + "}"
    default:
        return harnessQuote("\(value)")
    }
}

func harnessEmit(_ line: String) {
    fputs("@@harness@@" + line + "\n", stderr)
}
`

const swiftMain = `let harnessIndex = CommandLine.arguments.count > 1 ? (Int(CommandLine.arguments[1]) ?? -1) : -1
do {
    let result = try harnessDispatch(harnessIndex)
    harnessEmit("{\"ok\":true,\"value\":" + (try harnessEncode(result)) + "}")
} catch {
    harnessEmit("{\"ok\":false,\"error\":" + harnessQuote("\(error)") + "}")
}
`
