package flow

import "time"

func (s *UnitTestSuite) TestTTLCache() {
	c := NewTTL[string, string]()
	c.Set("key1", "value1", 200*time.Millisecond)
	v, ok := c.Get("key1")
	s.True(ok)
	s.Equal("value1", v)

	time.Sleep(250 * time.Millisecond)
	v, ok = c.Get("key1")
	s.False(ok)
	s.Equal("", v)

}

func (s *UnitTestSuite) TestTTLCacheClock() {
	now := time.Unix(1_700_000_000, 0)
	SetTimNowFn(func() time.Time { return now })
	defer RestoreTimeNow()

	c := NewTTL[string, int]()
	c.Set("a", 1, time.Minute)
	c.SetUntil("b", 2, now.Add(2*time.Minute))

	_, exp, ok := c.GetWithExpiry("a")
	s.True(ok)
	s.Equal(now.Add(time.Minute), exp)

	now = now.Add(90 * time.Second)
	_, ok = c.Get("a")
	s.False(ok)
	v, ok := c.Get("b")
	s.True(ok)
	s.Equal(2, v)

	s.Equal(1, c.Sweep())
	c.Delete("b")
	_, ok = c.Get("b")
	s.False(ok)
	s.Equal(0, c.Sweep())
}
