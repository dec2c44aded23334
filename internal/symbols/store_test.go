package symbols

import (
	"sync"
	"testing"

	"github.com/shinyvision/phpinfer/internal/types"
	"github.com/stretchr/testify/require"
)

func TestBuiltinsAreSeeded(t *testing.T) {
	s := NewStore()
	require.True(t, s.HasClass("Exception"))
	require.True(t, s.HasClass("\\exception"))
	require.True(t, s.IsA("InvalidArgumentException", "Throwable"))
	require.True(t, s.IsA("Generator", "Traversable"))

	h, ok := s.Function("STRLEN")
	require.True(t, ok)
	h.Read(func(f *FunctionData) {
		require.True(t, f.ReturnType().Equal(types.NewUnion(types.Int)))
		require.Empty(t, f.File)
	})

	require.False(t, NewEmptyStore().HasClass("Exception"))
}

func TestClassHierarchy(t *testing.T) {
	s := NewEmptyStore()
	base := NewClassData("Base", "App\\Base", KindClass)
	base.Implements = []string{"App\\Named"}
	child := NewClassData("Child", "App\\Child", KindClass)
	child.Extends = []string{"App\\Base"}
	named := NewClassData("Named", "App\\Named", KindInterface)
	s.AddClass(base)
	s.AddClass(child)
	s.AddClass(named)

	require.Equal(t, []string{"App\\Base", "App\\Named"}, s.Ancestors("App\\Child"))
	require.True(t, s.IsA("app\\child", "App\\Named"))
	require.False(t, s.IsA("App\\Base", "App\\Child"))
	require.Equal(t, []string{"App\\Base", "App\\Child", "App\\Named"}, s.ClassNames())
}

func TestAncestorsSurviveCycles(t *testing.T) {
	s := NewEmptyStore()
	a := NewClassData("A", "A", KindClass)
	a.Extends = []string{"B"}
	b := NewClassData("B", "B", KindClass)
	b.Extends = []string{"A"}
	s.AddClass(a)
	s.AddClass(b)
	require.Equal(t, []string{"B"}, s.Ancestors("A"))
}

func TestMemberLookupWalksParents(t *testing.T) {
	s := NewEmptyStore()
	base := NewClassData("Base", "Base", KindClass)
	base.Methods["run"] = &FunctionData{Name: "run", FQN: "Base::run", NativeReturn: types.NewUnion(types.Int)}
	base.Properties["id"] = &PropertyData{Name: "id", NativeType: types.NewUnion(types.Int), CommentType: types.NewUnion(types.String)}
	base.Constants["MAX"] = &ConstantData{Name: "MAX", FQN: "Base::MAX", Value: types.IntValue(3)}
	child := NewClassData("Child", "Child", KindClass)
	child.Extends = []string{"Base"}
	s.AddClass(base)
	s.AddClass(child)

	m, ok := s.LookupMethod("Child", "RUN")
	require.True(t, ok)
	require.Equal(t, "Base::run", m.FQN)

	p, ok := s.LookupProperty("Child", "id")
	require.True(t, ok)
	require.True(t, p.Type().Equal(types.NewUnion(types.String)))

	k, ok := s.LookupClassConstant("Child", "MAX")
	require.True(t, ok)
	require.Equal(t, "3", k.Value.String())

	_, ok = s.LookupMethod("Child", "missing")
	require.False(t, ok)
}

func TestConstantKeys(t *testing.T) {
	s := NewEmptyStore()
	s.AddConstant(&ConstantData{Name: "LIMIT", FQN: "App\\LIMIT", Value: types.IntValue(1)})
	_, ok := s.Constant("app\\LIMIT")
	require.True(t, ok)
	_, ok = s.Constant("App\\limit")
	require.False(t, ok)
}

func TestReplaceKeepsHandle(t *testing.T) {
	s := NewEmptyStore()
	first := s.AddFunction(&FunctionData{Name: "f", FQN: "f", NativeReturn: types.NewUnion(types.Int)})
	second := s.AddFunction(&FunctionData{Name: "f", FQN: "f", NativeReturn: types.NewUnion(types.String)})
	require.Same(t, first, second)
	first.Read(func(f *FunctionData) {
		require.True(t, f.NativeReturn.Equal(types.NewUnion(types.String)))
	})
}

func TestRemoveFile(t *testing.T) {
	s := NewEmptyStore()
	c := NewClassData("A", "A", KindClass)
	c.File = "a.php"
	s.AddClass(c)
	s.AddFunction(&FunctionData{Name: "f", FQN: "f", File: "a.php"})
	s.AddFunction(&FunctionData{Name: "g", FQN: "g", File: "b.php"})
	s.AddConstant(&ConstantData{Name: "K", FQN: "K", File: "a.php"})

	s.RemoveFile("a.php")
	require.False(t, s.HasClass("A"))
	_, ok := s.Function("f")
	require.False(t, ok)
	_, ok = s.Constant("K")
	require.False(t, ok)
	require.Equal(t, []string{"g"}, s.FunctionNames())
}

func TestReturnTypePrecedence(t *testing.T) {
	f := &FunctionData{InferredReturn: types.NewUnion(types.Int)}
	require.True(t, f.ReturnType().Equal(types.NewUnion(types.Int)))
	f.NativeReturn = types.NewUnion(types.Int, types.Null)
	require.True(t, f.ReturnType().Equal(f.NativeReturn))
	f.CommentReturn = types.NewUnion(types.String)
	require.True(t, f.ReturnType().Equal(f.CommentReturn))
}

func TestParamTypes(t *testing.T) {
	p := ParamData{Name: "xs", NativeType: types.NewUnion(types.Int), Variadic: true}
	want := types.NewUnion(types.Vector(types.NewUnion(types.Int)))
	require.True(t, p.Type().Equal(want))
}

func TestNames(t *testing.T) {
	require.Equal(t, "App\\Model\\User", NormalizeFQN("?\\App\\Model\\User"))
	require.Equal(t, "User", ShortName("App\\Model\\User"))
	require.Equal(t, "App\\Model", NamespaceOf("\\App\\Model\\User"))
	require.Equal(t, "", NamespaceOf("User"))
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	h := s.AddClass(NewClassData("Shared", "Shared", KindClass))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Write(func(c *ClassData) { c.Final = !c.Final })
		}()
		go func() {
			defer wg.Done()
			_ = s.IsA("Shared", "Exception")
			h.Read(func(c *ClassData) { _ = c.Final })
		}()
	}
	wg.Wait()
}

func TestSetPHPVersion(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SetPHPVersion("8.3"))
	h, ok := s.Constant("PHP_VERSION_ID")
	require.True(t, ok)
	h.Read(func(c *ConstantData) { require.Equal(t, "80300", c.Value.String()) })
	h, _ = s.Constant("PHP_VERSION")
	h.Read(func(c *ConstantData) { require.Equal(t, "'8.3.0'", c.Value.String()) })

	require.Error(t, s.SetPHPVersion("eight"))
	require.Error(t, s.SetPHPVersion("8"))
}
