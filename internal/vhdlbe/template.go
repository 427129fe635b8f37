package vhdlbe

import (
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"join": strings.Join,
}

// entityTmpl renders one automaton as a synchronous entity. Declarations
// and the process body arrive pre-rendered in the context map; the template
// only fixes the surrounding shape.
var entityTmpl = template.Must(template.New("entity").Funcs(funcs).Parse(`library IEEE;
use IEEE.std_logic_1164.all;
use IEEE.numeric_std.all;

use work.config.all;

entity {{.Name}} is
    port (
        clk : in std_logic;
        rst : in std_logic{{range .Ports}};
        {{.Name}} : {{.Dir}} {{.Type}}{{end}}
    );
end entity {{.Name}};

architecture behaviour of {{.Name}} is
    type {{.Name}}_state_t is ({{join .States ", "}});
    signal state : {{.Name}}_state_t := {{.InitialState}};
{{- range .Signals}}
    signal {{.Name}} : {{.Type}} := {{.Init}};
{{- end}}
begin
{{- range .Wires}}
    {{.}}
{{- end}}

    process (clk)
{{- range .Variables}}
        variable {{.Name}} : {{.Type}};
{{- end}}
    begin
        if rising_edge(clk) then
            if rst = '1' then
{{- range .Resets}}
                {{.}}
{{- end}}
                state <= {{.InitialState}};
            else
{{- range .Process}}
                {{.}}
{{- end}}
            end if;
        end if;
    end process;
end architecture behaviour;
`))

// configTmpl renders the package of execution constants shared by every
// entity, with reals already converted to fixed point.
var configTmpl = template.Must(template.New("config").Funcs(funcs).Parse(`library IEEE;
use IEEE.std_logic_1164.all;
use IEEE.numeric_std.all;

package config is
    constant STEP_SIZE : signed(31 downto 0) := to_signed({{.StepSize}}, 32);
    constant SIMULATION_TIME : signed(31 downto 0) := to_signed({{.SimulationTime}}, 32);
    constant MAX_INTER_TRANSITIONS : integer := {{.MaxInterTransitions}};
end package config;
`))

// topTmpl renders the root network: component instances wired per mapping.
var topTmpl = template.Must(template.New("top").Funcs(funcs).Parse(`library IEEE;
use IEEE.std_logic_1164.all;
use IEEE.numeric_std.all;

use work.config.all;

entity {{.Name}} is
    port (
        clk : in std_logic;
        rst : in std_logic{{range .Ports}};
        {{.Name}} : {{.Dir}} {{.Type}}{{end}}
    );
end entity {{.Name}};

architecture structure of {{.Name}} is
{{- range .Signals}}
    signal {{.Name}} : {{.Type}} := {{.Init}};
{{- end}}
begin
{{- range .Instances}}
    {{.Label}} : entity work.{{.Entity}}
        port map (
            clk => clk,
            rst => rst{{range .Bindings}},
            {{.Port}} => {{.Signal}}{{end}}
        );
{{- end}}
{{- range .Wires}}
    {{.}}
{{- end}}
end architecture structure;
`))

// benchTmpl renders the runnable: a clock generator around the top entity.
var benchTmpl = template.Must(template.New("bench").Funcs(funcs).Parse(`library IEEE;
use IEEE.std_logic_1164.all;
use IEEE.numeric_std.all;

entity runnable is
end entity runnable;

architecture sim of runnable is
    signal clk : std_logic := '0';
    signal rst : std_logic := '1';
{{- range .Signals}}
    signal {{.Name}} : {{.Type}};
{{- end}}
begin
    clk <= not clk after 5 ns;
    rst <= '0' after 20 ns;

    top : entity work.{{.Top}}
        port map (
            clk => clk,
            rst => rst{{range .Bindings}},
            {{.Port}} => {{.Signal}}{{end}}
        );
end architecture sim;
`))
