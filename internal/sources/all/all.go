// Package all registers every built-in source kind.
package all

import (
	_ "github.com/spigell/jobscout/internal/sources/adzuna"
	_ "github.com/spigell/jobscout/internal/sources/arbeitnow"
	_ "github.com/spigell/jobscout/internal/sources/greenhouse"
	_ "github.com/spigell/jobscout/internal/sources/headhunter"
	_ "github.com/spigell/jobscout/internal/sources/htmlboard"
	_ "github.com/spigell/jobscout/internal/sources/lever"
	_ "github.com/spigell/jobscout/internal/sources/remotive"
)
