package preprocessor

import "errors"

// ---------------- Conditionals ----------------

var (
	ErrElseWithoutIf  = errors.New("#else without #ifdef or #ifndef")
	ErrElifWithoutIf  = errors.New("#elif without #if")
	ErrEndifWithoutIf = errors.New("#endif without #ifdef or #ifndef")
)

// CondStack tracks nested conditional inclusion for one file.
type CondStack struct {
	stack []condFrame
}

type condFrame struct {
	parentActive bool
	taken        bool
	active       bool
	line         int
}

func NewCondStack() *CondStack { return &CondStack{} }
func (c *CondStack) Depth() int { return len(c.stack) }

func (c *CondStack) Active() bool {
	if len(c.stack) == 0 {
		return true
	}
	return c.stack[len(c.stack)-1].active
}

func (c *CondStack) Push(cond bool, line int) {
	parent := c.Active()
	active := parent && cond
	c.stack = append(c.stack, condFrame{
		parentActive: parent,
		taken:        active, // if active, branch is taken
		active:       active,
		line:         line,
	})
}

func (c *CondStack) Elif(cond bool) error {
	if len(c.stack) == 0 {
		return ErrElifWithoutIf
	}
	top := &c.stack[len(c.stack)-1]
	if !top.parentActive || top.taken {
		top.active = false
		return nil
	}
	top.active = cond
	if cond {
		top.taken = true
	}
	return nil
}

func (c *CondStack) Else() error {
	if len(c.stack) == 0 {
		return ErrElseWithoutIf
	}
	top := &c.stack[len(c.stack)-1]
	if !top.parentActive {
		top.active = false
		return nil
	}
	top.active = !top.taken
	top.taken = true
	return nil
}

func (c *CondStack) Pop() error {
	if len(c.stack) == 0 {
		return ErrEndifWithoutIf
	}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}

// UnclosedLine is the line of the innermost open conditional, or 0.
func (c *CondStack) UnclosedLine() int {
	if len(c.stack) == 0 {
		return 0
	}
	return c.stack[len(c.stack)-1].line
}
