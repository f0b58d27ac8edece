package process

// Guard is a pure predicate over instance variables, used to gate the
// outgoing edges of an exclusive gateway.
type Guard func(Variables) bool

// VarEquals matches when the variable's string form equals want.
func VarEquals(name, want string) Guard {
	return func(v Variables) bool {
		return v.String(name) == want
	}
}

// VarTrue matches when the variable is the boolean true or the string
// "true". User-task completions often carry booleans as strings.
func VarTrue(name string) Guard {
	return func(v Variables) bool {
		return v.Bool(name)
	}
}

// VarFalse matches when the variable is present and not true.
func VarFalse(name string) Guard {
	return func(v Variables) bool {
		return v.Has(name) && !v.Bool(name)
	}
}

// VarExists matches when the variable is set, regardless of value.
func VarExists(name string) Guard {
	return func(v Variables) bool {
		return v.Has(name)
	}
}

// Otherwise is the default edge guard. It is evaluated in declared order
// like any other guard, so it should be the gateway's last edge.
func Otherwise() Guard {
	return nil
}
