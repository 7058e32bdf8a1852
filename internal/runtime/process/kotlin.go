package process

import (
	"fmt"
	"regexp"
	"strings"

	"harness/internal/domain/execution"
)

const (
	kotlinSourceFilename = "main.kt"
	kotlinJarFilename    = "program.jar"
	kotlinMinHeapMiB     = 64
)

var (
	kotlinFunPattern  = regexp.MustCompile(`(?m)^(?:(?:public|internal|private|inline|tailrec|suspend|operator|infix|external)\s+)*fun\s+(?:<[^>]*>\s*)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	kotlinMainPattern = regexp.MustCompile(`(?m)^((?:(?:public|internal|private|suspend)\s+)*)fun\s+main\s*\(`)
)

type kotlinToolchain struct{}

func (kotlinToolchain) sourceName() string   { return kotlinSourceFilename }
func (kotlinToolchain) artifactName() string { return kotlinJarFilename }

func (kotlinToolchain) compileCommand() []string {
	return []string{"kotlinc", kotlinSourceFilename, "-include-runtime", "-nowarn", "-d", kotlinJarFilename}
}

// runCommand caps the JVM heap at half the memory budget so that the JVM
// reports OutOfMemoryError before the sandbox kills it.
func (kotlinToolchain) runCommand(index int, budget execution.Budget) []string {
	heap := budget.MemoryLimitBytes / 2 >> 20
	if heap < kotlinMinHeapMiB {
		heap = kotlinMinHeapMiB
	}
	return []string{"java", fmt.Sprintf("-Xmx%dm", heap), "-Xss16m", "-jar", kotlinJarFilename, fmt.Sprint(index)}
}

func (kotlinToolchain) signatures(source string) []signature {
	return scanSignatures(source, kotlinFunPattern, parseKotlinParam)
}

func parseKotlinParam(raw string) param {
	decl, _, _ := cutTopLevel(raw, '=')
	name, typ, _ := cutTopLevel(decl, ':')
	fields := strings.Fields(name)
	if len(fields) > 0 {
		name = fields[len(fields)-1]
	}
	return param{name: strings.TrimSpace(name), typ: strings.TrimSpace(typ)}
}

func (kotlinToolchain) program(source string, calls []plannedCall) (string, error) {
	var b strings.Builder
	b.WriteString(renameEntry(source, kotlinMainPattern, "${1}fun harnessUserMain("))
	b.WriteString("\n\n")
	b.WriteString(kotlinPrelude)
	b.WriteString("\nfun main(args: Array<String>) {\n")
	b.WriteString("    val index = args.firstOrNull()?.toIntOrNull() ?: -1\n")
	b.WriteString("    val line = try {\n")
	b.WriteString("        val result: Any? = when (index) {\n")
	for _, call := range calls {
		args := make([]string, len(call.call.Arguments))
		for i, arg := range call.call.Arguments {
			args[i] = kotlinLiteral(arg, call.sig.paramType(i))
		}
		fmt.Fprintf(&b, "            %d -> %s(%s)\n", call.index, call.sig.name, strings.Join(args, ", "))
	}
	b.WriteString("            else -> throw IllegalArgumentException(\"unknown call \" + index)\n")
	b.WriteString("        }\n")
	b.WriteString("        \"{\\\"ok\\\":true,\\\"value\\\":\" + harnessEncode(result) + \"}\"\n")
	b.WriteString("    } catch (e: Throwable) {\n")
	b.WriteString("        \"{\\\"ok\\\":false,\\\"error\\\":\" + harnessQuote(harnessDescribe(e)) + \"}\"\n")
	b.WriteString("    }\n")
	b.WriteString("    System.err.println(\"@@harness@@\" + line)\n")
	b.WriteString("}\n")
	return b.String(), nil
}

var kotlinEscapes = map[rune]string{'$': `\$`}

func kotlinLiteral(v execution.Value, typ string) string {
	typ = strings.TrimSuffix(strings.TrimSpace(typ), "?")

	switch v.Kind() {
	case execution.KindNull:
		return "null"
	case execution.KindBool:
		return fmt.Sprint(v.AsBool())
	case execution.KindNumber:
		n := v.AsNumber()
		switch {
		case typ == "Double" || (!isIntegral(n) && typ != "Float"):
			return floatLiteral(n)
		case typ == "Float":
			return floatLiteral(n) + "f"
		case typ == "Long" || n > 2147483647 || n < -2147483648:
			return intLiteral(n) + "L"
		default:
			return intLiteral(n)
		}
	case execution.KindString:
		s := v.AsString()
		if typ == "Char" && singleRune(s) {
			quoted := quoteString(s, fixedUnicode, map[rune]string{'\'': `\'`, '"': `"`})
			return "'" + quoted[1:len(quoted)-1] + "'"
		}
		return quoteString(s, fixedUnicode, kotlinEscapes)
	case execution.KindSequence:
		ctor, elem := kotlinSequenceConstructor(typ)
		items := make([]string, len(v.Items()))
		for i, item := range v.Items() {
			items[i] = kotlinLiteral(item, elem)
		}
		return ctor + "(" + strings.Join(items, ", ") + ")"
	case execution.KindMap:
		ctor := "mapOf"
		keyType, valueType := "String", ""
		if args, ok := genericArgs(typ, "MutableMap", "HashMap", "LinkedHashMap"); ok && len(args) == 2 {
			ctor = "mutableMapOf"
			keyType, valueType = args[0], args[1]
		} else if args, ok := genericArgs(typ, "Map"); ok && len(args) == 2 {
			keyType, valueType = args[0], args[1]
		}
		entries := make([]string, len(v.Entries()))
		for i, entry := range v.Entries() {
			entries[i] = kotlinLiteral(execution.String(entry.Key), keyType) + " to " + kotlinLiteral(entry.Value, valueType)
		}
		return ctor + "(" + strings.Join(entries, ", ") + ")"
	default:
		return "null"
	}
}

func kotlinSequenceConstructor(typ string) (string, string) {
	switch typ {
	case "IntArray":
		return "intArrayOf", "Int"
	case "LongArray":
		return "longArrayOf", "Long"
	case "DoubleArray":
		return "doubleArrayOf", "Double"
	case "FloatArray":
		return "floatArrayOf", "Float"
	case "BooleanArray":
		return "booleanArrayOf", "Boolean"
	case "CharArray":
		return "charArrayOf", "Char"
	}
	if args, ok := genericArgs(typ, "Array"); ok && len(args) == 1 {
		return "arrayOf", args[0]
	}
	if args, ok := genericArgs(typ, "MutableList", "ArrayList"); ok && len(args) == 1 {
		return "mutableListOf", args[0]
	}
	if args, ok := genericArgs(typ, "MutableSet", "HashSet"); ok && len(args) == 1 {
		return "mutableSetOf", args[0]
	}
	if args, ok := genericArgs(typ, "Set"); ok && len(args) == 1 {
		return "setOf", args[0]
	}
	if args, ok := genericArgs(typ, "List", "Collection", "Iterable"); ok && len(args) == 1 {
		return "listOf", args[0]
	}
	return "listOf", ""
}

const kotlinPrelude = `fun harnessQuote(s: String): String {
    val out = StringBuilder("\"")
    for (c in s) {
        when {
            c == '"' -> out.append("\\\"")
            c == '\\' -> out.append("\\\\")
            c == '\n' -> out.append("\\n")
            c == '\r' -> out.append("\\r")
            c == '\t' -> out.append("\\t")
            c.code < 0x20 -> out.append(String.format("\\u%04x", c.code))
            else -> out.append(c)
        }
    }
    return out.append('"').toString()
}

fun harnessNumber(d: Double): String {
    if (d.isNaN() || d.isInfinite()) {
        throw ArithmeticException("cannot represent non-finite number " + d)
    }
    return if (d == Math.floor(d) && Math.abs(d) < 1e15) d.toLong().toString() else d.toString()
}

fun harnessEncode(value: Any?): String = when (value) {
    null, is Unit -> "null"
    is Boolean -> value.toString()
    is Double -> harnessNumber(value)
    is Float -> harnessNumber(value.toDouble())
    is Number -> value.toString()
    is Char -> harnessQuote(value.toString())
    is String -> harnessQuote(value)
    is Map<*, *> -> value.entries.joinToString(",", "{", "}") { harnessQuote(it.key.toString()) + ":" + harnessEncode(it.value) }
    is Iterable<*> -> value.joinToString(",", "[", "]") { harnessEncode(it) }
    is Array<*> -> value.joinToString(",", "[", "]") { harnessEncode(it) }
    is IntArray -> value.joinToString(",", "[", "]")
    is LongArray -> value.joinToString(",", "[", "]")
    is DoubleArray -> value.joinToString(",", "[", "]") { harnessNumber(it) }
    is FloatArray -> value.joinToString(",", "[", "]") { harnessNumber(it.toDouble()) }
    is BooleanArray -> value.joinToString(",", "[", "]")
    is CharArray -> value.joinToString(",", "[", "]") { harnessQuote(it.toString()) }
    is Pair<*, *> -> "[" + harnessEncode(value.first) + "," + harnessEncode(value.second) + "]"
    is Triple<*, *, *> -> "[" + harnessEncode(value.first) + "," + harnessEncode(value.second) + "," + harnessEncode(value.third) + "]"
    else -> harnessQuote(value.toString())
}

fun harnessDescribe(e: Throwable): String {
    val message = e.message
    return if (message.isNullOrEmpty()) e.javaClass.simpleName else e.javaClass.simpleName + ": " + message
}
`
