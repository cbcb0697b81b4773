// internal/narrator/result.go
package narrator

// Kind tags how a boundary call ended.
type Kind int

const (
	KindOK Kind = iota
	KindParseError
	KindCallError
	KindIncomplete
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindParseError:
		return "parse_error"
	case KindCallError:
		return "call_error"
	case KindIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of one generation attempt. Value is only
// meaningful when Kind is KindOK.
type Result[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

func (r Result[T]) Ok() bool { return r.Kind == KindOK }

func OK[T any](v T) Result[T] { return Result[T]{Kind: KindOK, Value: v} }

func ParseError[T any](err error) Result[T] { return Result[T]{Kind: KindParseError, Err: err} }

func CallError[T any](err error) Result[T] { return Result[T]{Kind: KindCallError, Err: err} }

func Incomplete[T any](err error) Result[T] { return Result[T]{Kind: KindIncomplete, Err: err} }
